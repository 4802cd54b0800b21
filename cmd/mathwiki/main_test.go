package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/docutag/mathwiki/checkpoint"
	"github.com/docutag/mathwiki/models"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"crawl", "load", "verify", "classify", "completion", "serve"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Expected command %q to be registered, got %v", name, err)
		}
	}
}

func TestOpenCheckpointFile(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "amc8-all-all.json")

	storage, key, err := openCheckpoint(context.Background(), location)
	if err != nil {
		t.Fatalf("openCheckpoint failed: %v", err)
	}
	if key != "amc8-all-all.json" {
		t.Errorf("Expected key amc8-all-all.json, got %q", key)
	}

	ds := &models.Dataset{CompetitionID: "amc8"}
	written, err := checkpoint.Save(context.Background(), storage, key, ds)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if written != location {
		t.Errorf("Expected checkpoint at %s, got %s", location, written)
	}
}

func TestPrintSummary(t *testing.T) {
	var b strings.Builder
	printSummary(&b, models.Summary{Exams: 1, Problems: 4, WithAnswers: 3, Incomplete: []string{"2024 #2"}})

	out := b.String()
	for _, want := range []string{"Problems:         4", "(75.0%)", "2024 #2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in summary:\n%s", want, out)
		}
	}
}

func TestVerifyRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown competition", []string{"aime", "2024", "1"}, "unknown competition"},
		{"bad year", []string{"amc8", "latest", "1"}, "invalid year"},
		{"bad number", []string{"amc8", "2024", "first"}, "invalid problem number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifyCmd.SetContext(context.Background())
			err := runVerify(verifyCmd, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestStartMetricsDisabled(t *testing.T) {
	flagMetricsAddr = ""
	m, stop := startMetrics(zap.NewNop())
	defer stop()
	if m != nil {
		t.Error("Expected no collectors without --metrics-addr")
	}
}

func TestStartMetricsServesCollectors(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	flagMetricsAddr = addr
	defer func() { flagMetricsAddr = "" }()

	m, stop := startMetrics(zap.NewNop())
	defer stop()
	if m == nil {
		t.Fatal("Expected collectors with --metrics-addr")
	}
	m.PageFetched("ok", time.Millisecond)

	var body []byte
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err == nil {
			body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(string(body), "mathwiki_pages_fetched_total") {
		t.Errorf("Expected the page counter in the exposition, got:\n%s", body)
	}
}
