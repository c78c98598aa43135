package survey

import (
	"strings"
)

// Answer is the raw value of one question for one unit column, together with
// the context needed to report a bad value.
type Answer struct {
	Sheet    string
	Question string
	Column   int
	Value    string // trimmed, numbers normalized
}

// Blank reports whether the answer is empty.
func (a Answer) Blank() bool { return a.Value == "" }

// Required returns the answer, or MissingAnswer if it is blank.
func (a Answer) Required() (string, error) {
	if a.Blank() {
		return "", MissingAnswer(a.Sheet, a.Question, a.Column)
	}
	return a.Value, nil
}

// Optional returns nil for a blank answer.
func (a Answer) Optional() *string {
	if a.Blank() {
		return nil
	}
	v := a.Value
	return &v
}

// YesNo accepts YES or NO in any case.
func (a Answer) YesNo() (bool, error) {
	return a.boolean(false)
}

// YesNoOrNA accepts YES, NO or N/A in any case; N/A counts as false.
func (a Answer) YesNoOrNA() (bool, error) {
	return a.boolean(true)
}

func (a Answer) boolean(allowNA bool) (bool, error) {
	v, err := a.Required()
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(v) {
	case "YES":
		return true, nil
	case "NO":
		return false, nil
	case "N/A":
		if allowNA {
			return false, nil
		}
	}
	return false, InvalidBoolean(a.Sheet, a.Question, a.Column, v)
}

// Lookup resolves m to its row and reads the answer in col. It only fails when
// the question cannot be located; a blank cell yields a blank Answer.
func (g *Grid) Lookup(m QuestionMatch, col int) (Answer, error) {
	row, err := g.FindRow(m)
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		Sheet:    g.sheet,
		Question: g.Cell(row, 0).String(),
		Column:   col,
		Value:    g.Cell(row, col).String(),
	}, nil
}

// Answer returns the trimmed answer to m in col, or MissingAnswer when blank.
func (g *Grid) Answer(m QuestionMatch, col int) (string, error) {
	a, err := g.Lookup(m, col)
	if err != nil {
		return "", err
	}
	return a.Required()
}

// OptionalAnswer returns the trimmed answer to m in col, or nil when blank.
func (g *Grid) OptionalAnswer(m QuestionMatch, col int) (*string, error) {
	a, err := g.Lookup(m, col)
	if err != nil {
		return nil, err
	}
	return a.Optional(), nil
}

// YesNo resolves m in col as a strict yes/no answer.
func (g *Grid) YesNo(m QuestionMatch, col int) (bool, error) {
	a, err := g.Lookup(m, col)
	if err != nil {
		return false, err
	}
	return a.YesNo()
}

// YesNoOrNA resolves m in col as a yes/no answer that also accepts N/A.
func (g *Grid) YesNoOrNA(m QuestionMatch, col int) (bool, error) {
	a, err := g.Lookup(m, col)
	if err != nil {
		return false, err
	}
	return a.YesNoOrNA()
}

// AsYesNo coerces a bare value, reporting question in any error.
func AsYesNo(value, question string) (bool, error) {
	return Answer{Question: question, Value: strings.TrimSpace(value)}.YesNo()
}

// AsYesNoOrNA coerces a bare value, accepting N/A as false.
func AsYesNoOrNA(value, question string) (bool, error) {
	return Answer{Question: question, Value: strings.TrimSpace(value)}.YesNoOrNA()
}

// AsRequiredString trims value and fails with MissingAnswer when blank.
func AsRequiredString(value, question string) (string, error) {
	return Answer{Question: question, Value: strings.TrimSpace(value)}.Required()
}

// AsOptionalString trims value and maps blank to nil.
func AsOptionalString(value string) *string {
	return Answer{Value: strings.TrimSpace(value)}.Optional()
}
