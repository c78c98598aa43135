package sitesurvey

import "github.com/sells-group/sitesurvey-cli/internal/survey"

// Premises sheet questions.
var (
	QuestionQCode              = survey.Exact("AP Identifier (Q No.)")
	QuestionPremisesName       = survey.Exact("Name of AP")
	QuestionAddressLine1       = survey.Exact("Building/Street")
	QuestionAddressLine2       = survey.Exact("Address Line 2")
	QuestionTown               = survey.Exact("Town/City")
	QuestionPostcode           = survey.Exact("Postcode")
	QuestionProbationRegion    = survey.Exact("Probation Region")
	QuestionLocalAuthorityArea = survey.Exact("Local Authority Area")
	QuestionGender             = survey.Exact("Male/Female AP?")
)

// Rooms sheet questions.
var (
	QuestionRoomIdentifier = survey.Exact("Room Number / Name")
	QuestionBedReference   = survey.Exact("Unique Reference Number for Bed")
	QuestionBedNumber      = survey.Exact("Bed Number (in this room i.e if this is a shared room)")
	QuestionRoomNotes      = survey.StartsWith("Room notes")
)

// premisesFieldQuestions lists the non-characteristic premises questions in
// template order.
var premisesFieldQuestions = []survey.QuestionMatch{
	QuestionQCode,
	QuestionPremisesName,
	QuestionAddressLine1,
	QuestionAddressLine2,
	QuestionTown,
	QuestionPostcode,
	QuestionProbationRegion,
	QuestionLocalAuthorityArea,
	QuestionGender,
}

// roomFieldQuestions lists the non-characteristic room questions in template
// order for the numbered dialect.
var roomFieldQuestions = []survey.QuestionMatch{
	QuestionBedReference,
	QuestionRoomIdentifier,
	QuestionBedNumber,
	QuestionRoomNotes,
}
