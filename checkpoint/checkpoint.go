// Package checkpoint persists crawl results between the crawl and load
// stages, so a failed load can be retried without crawling again.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/slug"
)

// DefaultKey names the checkpoint of a crawl, e.g. "amc8-1999-2025.json".
// A zero bound is written as "all".
func DefaultKey(competitionID string, from, to int) string {
	bound := func(y int) string {
		if y <= 0 {
			return "all"
		}
		return strconv.Itoa(y)
	}
	name := slug.Join(competitionID, bound(from), bound(to))
	if name == "" {
		name = "checkpoint"
	}
	return name + ".json"
}

// Save writes the dataset as indented JSON and returns its location
func Save(ctx context.Context, s Storage, key string, ds *models.Dataset) (string, error) {
	if ds == nil {
		return "", fmt.Errorf("no dataset to save")
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return s.Write(ctx, key, append(data, '\n'))
}

// Load reads a dataset written by Save
func Load(ctx context.Context, s Storage, key string) (*models.Dataset, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	var ds models.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", key, err)
	}
	if ds.CompetitionID == "" {
		return nil, fmt.Errorf("checkpoint %s has no competitionId", key)
	}
	return &ds, nil
}
