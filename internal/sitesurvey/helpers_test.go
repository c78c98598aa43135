package sitesurvey

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
	"github.com/sells-group/sitesurvey-cli/internal/taxonomy"
)

const testTable = `
premises:
  - question: "Is this an IAP?"
    property: isIAP
  - question: "Is there a lift at this AP?"
    property: hasLift
rooms:
  - question: "Is this room located on the ground floor?"
    property: isGroundFloor
  - question: "Does this room have an en-suite bathroom?"
    property: hasEnSuite
    coercion: yes_no_na
`

type stubFinder map[string]facility.Characteristic

func (f stubFinder) FindCharacteristic(_ context.Context, propertyName, _, modelScope string) (*facility.Characteristic, error) {
	c, ok := f[modelScope+"/"+propertyName]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func testBound(t *testing.T) (*taxonomy.Bound, stubFinder) {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(testTable))
	require.NoError(t, err)
	finder := stubFinder{}
	for _, c := range tax.Characteristics() {
		c.ID = uuid.New()
		finder[c.ModelScope+"/"+c.PropertyName] = c
	}
	bound, err := tax.Bind(context.Background(), finder)
	require.NoError(t, err)
	return bound, finder
}

// sheet builds a named grid from rows built with row.
func sheet(t *testing.T, name string, rows ...[]survey.Cell) *survey.Grid {
	t.Helper()
	g, err := survey.NewGrid(name, rows)
	require.NoError(t, err)
	return g
}

// row converts strings and numbers to cells; anything else is blank.
func row(cells ...any) []survey.Cell {
	out := make([]survey.Cell, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case string:
			out[i] = survey.Text(v)
		case float64:
			out[i] = survey.Number(v)
		case int:
			out[i] = survey.Number(float64(v))
		default:
			out[i] = survey.Empty()
		}
	}
	return out
}
