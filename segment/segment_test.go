package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func parse(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return doc
}

func sectionText(s Section) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

const legacyPage = `<html><body><div id="content"><div class="mw-parser-output">
<div id="toc">Contents</div>
<h2><span class="mw-headline" id="Problem">Problem</span><span class="mw-editsection">[edit]</span></h2>
<p>What is $1+1$?</p>
<h2><span class="mw-headline" id="Solution_6">Solution 6</span></h2>
<p>Six says the answer is B.</p>
<h3><span class="mw-headline">Remark</span></h3>
<p>A remark that belongs to Solution 6.</p>
<h2><span class="mw-headline" id="Solution_7">Solution 7</span></h2>
<p>Seven agrees.</p>
<h2><span class="mw-headline" id="Video_Solution">Video Solution</span></h2>
<p><a href="https://youtu.be/abc">watch</a></p>
<h2><span class="mw-headline" id="See_also">See also</span></h2>
<p>Navigation</p>
</div></div></body></html>`

const wrappedPage = `<html><body><div class="mw-parser-output">
<div class="mw-heading mw-heading2"><h2 id="Problem">Problem</h2><span class="mw-editsection">[edit]</span></div>
<p>What is $1+1$?</p>
<div class="mw-heading mw-heading2"><h2 id="Solution_6">Solution 6</h2></div>
<p>Six says the answer is B.</p>
<div class="mw-heading mw-heading3"><h3>Remark</h3></div>
<p>A remark that belongs to Solution 6.</p>
<div class="mw-heading mw-heading2"><h2 id="Solution_7">Solution 7</h2></div>
<p>Seven agrees.</p>
<div class="mw-heading mw-heading2"><h2>Video Solution</h2></div>
<p><a href="https://youtu.be/abc">watch</a></p>
<div class="mw-heading mw-heading2"><h2>See also</h2></div>
<p>Navigation</p>
</div></body></html>`

func TestSegment(t *testing.T) {
	pages := map[string]string{
		"plain headings":      legacyPage,
		"mw-heading wrappers": wrappedPage,
	}

	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			sections, err := New(DefaultConfig()).Segment(parse(t, page))
			if err != nil {
				t.Fatalf("Segment failed: %v", err)
			}

			wantTitles := []string{"Problem", "Solution 6", "Solution 7", "Video Solution"}
			wantKinds := []Kind{KindProblem, KindSolution, KindSolution, KindVideo}
			if len(sections) != len(wantTitles) {
				t.Fatalf("Expected %d sections, got %d: %+v", len(wantTitles), len(sections), sections)
			}
			for i, s := range sections {
				if s.Title != wantTitles[i] {
					t.Errorf("Section %d: expected title %q, got %q", i, wantTitles[i], s.Title)
				}
				if s.Kind != wantKinds[i] {
					t.Errorf("Section %d: expected kind %q, got %q", i, wantKinds[i], s.Kind)
				}
			}

			if got := sectionText(sections[0]); got != "What is $1+1$?" {
				t.Errorf("Expected problem text only, got %q", got)
			}

			six := sectionText(sections[1])
			if !strings.Contains(six, "remark that belongs to Solution 6") {
				t.Errorf("Expected h3 content to stay inside Solution 6, got %q", six)
			}
			if strings.Contains(six, "Seven agrees") {
				t.Errorf("Solution 6 bled into Solution 7: %q", six)
			}
			if got := sectionText(sections[2]); got != "Seven agrees." {
				t.Errorf("Expected Solution 7 text only, got %q", got)
			}
			if strings.Contains(sectionText(sections[3]), "Navigation") {
				t.Error("Denylisted section content leaked into the previous section")
			}
		})
	}
}

// TestSegmentSolutionPrefix covers titles that are prefixes of later titles
func TestSegmentSolutionPrefix(t *testing.T) {
	page := `<div class="mw-parser-output">
<h2>Solution 1</h2><p>one</p>
<h2>Solution 10</h2><p>ten</p>
<h2>Solution 1 (alternate)</h2><p>alt</p>
</div>`

	sections, err := New(DefaultConfig()).Segment(parse(t, page))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	want := []string{"one", "ten", "alt"}
	if len(sections) != len(want) {
		t.Fatalf("Expected %d sections, got %d", len(want), len(sections))
	}
	for i, s := range sections {
		if got := sectionText(s); got != want[i] {
			t.Errorf("Section %q: expected %q, got %q", s.Title, want[i], got)
		}
	}
}

// TestSegmentNestedBoundary covers a boundary heading nested deeper than the
// section start
func TestSegmentNestedBoundary(t *testing.T) {
	page := `<div class="mw-parser-output">
<h2>Problem</h2>
<div class="box"><p>inside box</p><h2>Solution</h2><p>solution text</p></div>
<p>after box</p>
</div>`

	sections, err := New(DefaultConfig()).Segment(parse(t, page))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if got := sectionText(sections[0]); got != "inside box" {
		t.Errorf("Expected problem section 'inside box', got %q", got)
	}
	if got := sectionText(sections[1]); got != "solution text after box" {
		t.Errorf("Expected solution section 'solution text after box', got %q", got)
	}
}

func TestSegmentMissingContainer(t *testing.T) {
	_, err := New(DefaultConfig()).Segment(parse(t, `<html><body><h2>Problem</h2></body></html>`))
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("Expected *ExtractionError, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		title string
		want  Kind
	}{
		{"Problem", KindProblem},
		{"Problem 5", KindProblem},
		{"Solution", KindSolution},
		{"Solution 2 (Casework)", KindSolution},
		{"Video Solution by Math-X", KindVideo},
		{"VIDEO SOLUTION", KindVideo},
		{"Answer Key", KindAnswerKey},
		{"Remarks", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Classify(tt.title); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSectionFind(t *testing.T) {
	page := `<div class="mw-parser-output">
<h2>Problem</h2>
<ol><li>one</li><li>two</li></ol>
<p><img class="latex" alt="$x$"></p>
<h2>Solution</h2><ol><li>other</li></ol>
</div>`

	sections, err := New(DefaultConfig()).Segment(parse(t, page))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	problem, ok := First(sections, KindProblem)
	if !ok {
		t.Fatal("Expected a problem section")
	}
	if got := len(problem.Find("ol")); got != 1 {
		t.Errorf("Expected 1 ol in problem section, got %d", got)
	}
	if got := len(problem.Find("li")); got != 2 {
		t.Errorf("Expected 2 li in problem section, got %d", got)
	}
	if got := len(problem.Find("img.latex")); got != 1 {
		t.Errorf("Expected 1 latex image, got %d", got)
	}
	if got := len(Filter(sections, KindSolution)); got != 1 {
		t.Errorf("Expected 1 solution section, got %d", got)
	}
}
