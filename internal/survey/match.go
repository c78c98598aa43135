package survey

import (
	"strings"

	"golang.org/x/text/cases"
)

// QuestionMatch selects the row holding a question, by exact label or by label
// prefix. Comparison is case-insensitive and ignores surrounding whitespace.
type QuestionMatch struct {
	text   string
	prefix bool
}

// Exact matches a row whose label equals label.
func Exact(label string) QuestionMatch {
	return QuestionMatch{text: label}
}

// StartsWith matches a row whose label begins with prefix.
func StartsWith(prefix string) QuestionMatch {
	return QuestionMatch{text: prefix, prefix: true}
}

// Text returns the label or prefix being matched.
func (m QuestionMatch) Text() string { return m.text }

// IsPrefix reports whether m is a prefix match.
func (m QuestionMatch) IsPrefix() bool { return m.prefix }

func (m QuestionMatch) String() string {
	if m.prefix {
		return m.text + "..."
	}
	return m.text
}

func (m QuestionMatch) matches(label string) bool {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(m.text))
	got := fold.String(strings.TrimSpace(label))
	if m.prefix {
		return strings.HasPrefix(got, want)
	}
	return got == want
}

// FindRow returns the index of the single row whose label matches m. Zero or
// several matching rows is a MalformedSheet error naming the sheet.
func (g *Grid) FindRow(m QuestionMatch) (int, error) {
	found, err := g.FindOptionalRow(m)
	if err != nil {
		return 0, err
	}
	if found < 0 {
		return 0, &Error{
			Kind:     KindMalformedSheet,
			Sheet:    g.sheet,
			Question: m.String(),
			Detail:   "question not found",
		}
	}
	return found, nil
}

// FindOptionalRow is FindRow for questions a sheet may omit: it returns -1
// when no row matches. Several matching rows is still a MalformedSheet error.
func (g *Grid) FindOptionalRow(m QuestionMatch) (int, error) {
	found := -1
	for row := 1; row < len(g.rows); row++ {
		label := g.Cell(row, 0)
		if label.IsBlank() || !m.matches(label.String()) {
			continue
		}
		if found >= 0 {
			return -1, &Error{
				Kind:     KindMalformedSheet,
				Sheet:    g.sheet,
				Question: m.String(),
				Detail:   "question matches more than one row",
			}
		}
		found = row
	}
	return found, nil
}
