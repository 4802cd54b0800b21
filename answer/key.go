package answer

import (
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/docutag/mathwiki/models"
	"github.com/docutag/mathwiki/normalize"
)

// minListAnswers is the size below which the list parse is considered
// incomplete and the inline fallback runs
const minListAnswers = 5

var (
	containerSel = cascadia.MustCompile(".mw-parser-output")
	listSel      = cascadia.MustCompile("ol")

	bareLetter   = regexp.MustCompile(`^\s*\(?([A-Ea-e])\)?\s*$`)
	anyLetter    = regexp.MustCompile(`\b([A-E])\b`)
	inlineAnswer = regexp.MustCompile(`(\d+)\.\s*([A-E])\b`)
)

// ParseKeyDocument parses a loaded answer key page
func ParseKeyDocument(doc *goquery.Document) models.AnswerKey {
	if doc == nil || len(doc.Nodes) == 0 {
		return models.AnswerKey{}
	}
	return ParseKey(doc.Nodes[0])
}

// ParseKey reads an answer key page. The first ordered list maps item i to
// problem i; when that yields fewer than five answers, "N. X" patterns in the
// page text fill the gaps.
func ParseKey(root *html.Node) models.AnswerKey {
	key := models.AnswerKey{}
	if root == nil {
		return key
	}

	container := cascadia.Query(root, containerSel)
	if container == nil {
		container = root
	}

	if list := cascadia.Query(container, listSel); list != nil {
		number := 0
		for li := list.FirstChild; li != nil; li = li.NextSibling {
			if li.Type != html.ElementNode || li.Data != "li" {
				continue
			}
			number++
			text := normalize.Flatten(normalize.FromHTML(li))
			if m := bareLetter.FindStringSubmatch(text); m != nil {
				key[number] = normalizeLetter(m[1])
			} else if m := anyLetter.FindStringSubmatch(text); m != nil {
				key[number] = m[1]
			}
		}
	}

	if len(key) < minListAnswers {
		text := normalize.Flatten(normalize.FromHTML(container))
		for _, m := range inlineAnswer.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				continue
			}
			if _, ok := key[n]; !ok {
				key[n] = m[2]
			}
		}
	}

	return key
}
