package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Only spans padded on both sides are touched, so a dollar amount in
	// prose is never paired with the next math span
	mathPadding  = regexp.MustCompile(`(\$\$?)[ \t]+([^$\n]+?)[ \t]+(\$\$?)`)
	lineSpace    = regexp.MustCompile(`[ \t\f\v]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted text: NFC form, plain spaces, dollar math
// delimiters without inner padding, single spaces within lines and at most
// one blank line between paragraphs.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = rewriteMath(s)
	s = mathPadding.ReplaceAllString(s, "${1}${2}${3}")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(lineSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLineRun.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// rewriteMath turns \( \) and \[ \] pairs into dollar delimiters with the
// inner padding trimmed. A doubled backslash is a LaTeX line break, so
// \\[2pt] is left alone, as is an opener without its closer.
func rewriteMath(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}

		var closer, delim string
		switch s[i+1] {
		case '\\':
			sb.WriteString(`\\`)
			i++
			continue
		case '(':
			closer, delim = `\)`, "$"
		case '[':
			closer, delim = `\]`, "$$"
		default:
			sb.WriteByte(s[i])
			continue
		}

		end := strings.Index(s[i+2:], closer)
		if end < 0 {
			sb.WriteByte(s[i])
			continue
		}
		sb.WriteString(delim)
		sb.WriteString(strings.Trim(s[i+2:i+2+end], " \t"))
		sb.WriteString(delim)
		i += 2 + end + len(closer) - 1
	}
	return sb.String()
}
