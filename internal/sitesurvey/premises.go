package sitesurvey

import (
	"strings"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
	"github.com/sells-group/sitesurvey-cli/internal/taxonomy"
)

// premisesColumn holds the single global answer of the premises sheet.
const premisesColumn = 1

// ParsePremises reads the premises sheet into a candidate.
func ParsePremises(g *survey.Grid, bound *taxonomy.Bound) (*CandidatePremises, error) {
	p := &CandidatePremises{}

	required := []struct {
		q   survey.QuestionMatch
		dst *string
	}{
		{QuestionQCode, &p.QCode},
		{QuestionPremisesName, &p.Name},
		{QuestionAddressLine1, &p.AddressLine1},
		{QuestionTown, &p.Town},
		{QuestionPostcode, &p.Postcode},
		{QuestionProbationRegion, &p.ProbationRegion},
		{QuestionLocalAuthorityArea, &p.LocalAuthorityArea},
	}
	for _, f := range required {
		v, err := g.Answer(f.q, premisesColumn)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	line2, err := g.OptionalAnswer(QuestionAddressLine2, premisesColumn)
	if err != nil {
		return nil, err
	}
	p.AddressLine2 = line2
	p.Postcode = normalizePostcode(p.Postcode)

	gender, err := g.Lookup(QuestionGender, premisesColumn)
	if err != nil {
		return nil, err
	}
	p.Gender, err = parseGender(gender)
	if err != nil {
		return nil, err
	}

	p.Characteristics, err = bound.Apply(g, facility.ModelPremises, premisesColumn)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func parseGender(a survey.Answer) (facility.Gender, error) {
	v, err := a.Required()
	if err != nil {
		return "", err
	}
	switch strings.ToLower(v) {
	case "male", "man", "men":
		return facility.GenderMan, nil
	case "female", "woman", "women":
		return facility.GenderWoman, nil
	}
	return "", &survey.Error{
		Kind:     survey.KindMalformedSheet,
		Sheet:    a.Sheet,
		Question: a.Question,
		Column:   a.Column,
		Value:    v,
		Detail:   "expected Male or Female",
	}
}

// normalizePostcode upper-cases and collapses inner whitespace.
func normalizePostcode(pc string) string {
	return strings.ToUpper(strings.Join(strings.Fields(pc), " "))
}
