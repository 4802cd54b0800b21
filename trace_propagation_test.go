package mathwiki

import (
	"context"
	"net/http/httptest"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestCrawlRecordsSpans verifies a crawl produces one span per competition,
// exam and problem, nested under each other
func TestCrawlRecordsSpans(t *testing.T) {
	w := newWiki()
	seedAMC8(w)
	server := httptest.NewServer(w)
	defer server.Close()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	s, err := New(testConfig(), Deps{TracerProvider: provider})
	if err != nil {
		t.Fatalf("Failed to create scraper: %v", err)
	}
	defer s.Close()

	if _, err := s.Crawl(context.Background(), testCompetition(t, server.URL), CrawlOptions{FromYear: 2024, ToYear: 2024}); err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	counts := map[string]int{}
	var crawlID, examParent string
	for _, span := range recorder.Ended() {
		counts[span.Name()]++
		switch span.Name() {
		case "mathwiki.crawl":
			crawlID = span.SpanContext().SpanID().String()
		case "mathwiki.exam":
			examParent = span.Parent().SpanID().String()
		}
	}

	if counts["mathwiki.crawl"] != 1 || counts["mathwiki.exam"] != 1 {
		t.Errorf("Expected one crawl and one exam span, got %v", counts)
	}
	// Problems 1, 2 and 3; the failing one still gets a span
	if counts["mathwiki.problem"] != 3 {
		t.Errorf("Expected 3 problem spans, got %d", counts["mathwiki.problem"])
	}
	if crawlID == "" || examParent != crawlID {
		t.Errorf("Expected exam span to be a child of the crawl span")
	}
}
