package checkpoint

import (
	"context"
	"testing"
)

func validS3Config() S3Config {
	return S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}
}

// TestNewS3Storage tests creating S3 storage with valid config
func TestNewS3Storage(t *testing.T) {
	s, err := NewS3Storage(context.Background(), validS3Config())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if s == nil {
		t.Fatal("Expected storage to be non-nil")
	}
}

func TestNewS3StorageValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*S3Config)
	}{
		{"missing bucket", func(c *S3Config) { c.Bucket = "" }},
		{"missing region", func(c *S3Config) { c.Region = "" }},
		{"missing access key", func(c *S3Config) { c.AccessKeyID = "" }},
		{"missing secret", func(c *S3Config) { c.SecretAccessKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validS3Config()
			tt.modify(&cfg)
			if _, err := NewS3Storage(context.Background(), cfg); err == nil {
				t.Fatal("Expected error, got nil")
			}
		})
	}
}

func TestS3ObjectKey(t *testing.T) {
	tests := []struct {
		prefix   string
		key      string
		expected string
	}{
		{"", "amc8-all-all.json", "amc8-all-all.json"},
		{"", "/amc8.json", "amc8.json"},
		{"checkpoints", "amc8.json", "checkpoints/amc8.json"},
		{"checkpoints/", "runs\\amc8.json", "checkpoints/runs/amc8.json"},
	}
	for _, tt := range tests {
		s := &S3Storage{config: S3Config{Prefix: tt.prefix}}
		if got := s.objectKey(tt.key); got != tt.expected {
			t.Errorf("objectKey(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.expected)
		}
	}
}
