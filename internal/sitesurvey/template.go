package sitesurvey

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
	"github.com/sells-group/sitesurvey-cli/internal/taxonomy"
)

// TemplateOptions configures a blank survey workbook.
type TemplateOptions struct {
	PremisesSheet string
	RoomsSheet    string
	Beds          int // number of blank bed columns, default 10
}

// BuildTemplate returns a workbook with one premises sheet and one rooms sheet
// laid out the way ParsePremises and ParseRooms expect.
func BuildTemplate(tax *taxonomy.Taxonomy, opts TemplateOptions) (*excelize.File, error) {
	if opts.PremisesSheet == "" || opts.RoomsSheet == "" || opts.PremisesSheet == opts.RoomsSheet {
		return nil, eris.New("template: premises and rooms sheets need distinct names")
	}
	if opts.Beds <= 0 {
		opts.Beds = 10
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", opts.PremisesSheet); err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "template: rename sheet")
	}
	if _, err := f.NewSheet(opts.RoomsSheet); err != nil {
		_ = f.Close()
		return nil, eris.Wrap(err, "template: add rooms sheet")
	}

	premises := labels(premisesFieldQuestions, tax.Definitions(facility.ModelPremises))
	if err := writeSheet(f, opts.PremisesSheet, []string{"Answer"}, premises); err != nil {
		_ = f.Close()
		return nil, err
	}

	headers := make([]string, opts.Beds)
	for i := range headers {
		headers[i] = fmt.Sprintf("BED%02d", i+1)
	}
	rooms := labels(roomFieldQuestions, tax.Definitions(facility.ModelRoom))
	if err := writeSheet(f, opts.RoomsSheet, headers, rooms); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// WriteTemplate builds a template and saves it to path.
func WriteTemplate(path string, tax *taxonomy.Taxonomy, opts TemplateOptions) error {
	f, err := BuildTemplate(tax, opts)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "template: save %s", path)
	}
	return nil
}

func labels(fields []survey.QuestionMatch, defs []taxonomy.Definition) []string {
	out := make([]string, 0, len(fields)+len(defs))
	for _, q := range fields {
		out = append(out, q.Text())
	}
	for _, d := range defs {
		out = append(out, d.Question)
	}
	return out
}

func writeSheet(f *excelize.File, sheet string, headers, questions []string) error {
	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return eris.Wrap(err, "template: cell name")
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return eris.Wrapf(err, "template: set %s!%s", sheet, cell)
		}
		return nil
	}

	if err := set(1, 1, "Question"); err != nil {
		return err
	}
	for i, h := range headers {
		if err := set(i+2, 1, h); err != nil {
			return err
		}
	}
	for i, q := range questions {
		if err := set(1, i+2, q); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 90); err != nil {
		return eris.Wrap(err, "template: column width")
	}
	return nil
}
