package mathwiki

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/docutag/mathwiki/competitions"
	"github.com/docutag/mathwiki/fetch"
)

var problemHref = regexp.MustCompile(`Problem_(\d+)$`)

type yearLink struct {
	Year int
	URL  string
}

type problemLink struct {
	Number int
	URL    string
}

// yearLinks lists the exam pages linked from a competition index page,
// one per year, oldest first
func yearLinks(doc *fetch.Document, comp competitions.Competition) []yearLink {
	seen := map[int]bool{}
	var links []yearLink

	doc.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		year, ok := comp.MatchYear(a.Text(), href)
		if !ok || seen[year] {
			return
		}
		resolved, err := doc.Resolve(href)
		if err != nil {
			return
		}
		seen[year] = true
		links = append(links, yearLink{Year: year, URL: resolved})
	})

	sort.Slice(links, func(i, j int) bool { return links[i].Year < links[j].Year })
	return links
}

// problemLinks lists the problem pages linked from an exam page. Numbers
// outside 1..limit are ignored, duplicates keep their first link.
func problemLinks(doc *fetch.Document, limit int) []problemLink {
	seen := map[int]bool{}
	var links []problemLink

	doc.Doc.Find(`a[href*="/Problem_"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := problemHref.FindStringSubmatch(href)
		if m == nil {
			return
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || (limit > 0 && n > limit) || seen[n] {
			return
		}
		resolved, err := doc.Resolve(href)
		if err != nil {
			return
		}
		seen[n] = true
		links = append(links, problemLink{Number: n, URL: resolved})
	})

	sort.Slice(links, func(i, j int) bool { return links[i].Number < links[j].Number })
	return links
}

// answerKeyLink finds the first anchor whose text contains title
func answerKeyLink(doc *fetch.Document, title string) string {
	title = strings.ToLower(title)
	var link string
	doc.Doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(a.Text()), title) {
			return true
		}
		href, _ := a.Attr("href")
		resolved, err := doc.Resolve(href)
		if err != nil {
			return true
		}
		link = resolved
		return false
	})
	return link
}
