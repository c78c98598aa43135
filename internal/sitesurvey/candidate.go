// Package sitesurvey parses the premises and rooms sheets of a site survey
// into candidate entities. Parsing is pure: nothing here touches the store, so
// every data error is raised before an import writes anything.
package sitesurvey

import (
	"github.com/sells-group/sitesurvey-cli/internal/facility"
)

// CandidatePremises is a premises as described by the survey.
type CandidatePremises struct {
	QCode              string
	Name               string
	AddressLine1       string
	AddressLine2       *string
	Town               string
	Postcode           string
	Gender             facility.Gender
	ProbationRegion    string
	LocalAuthorityArea string
	Characteristics    facility.Characteristics
}

// CandidateRoom is a room assembled from one or more bed columns.
type CandidateRoom struct {
	Code            string
	Name            string
	Notes           *string
	Characteristics facility.Characteristics
	Beds            []CandidateBed
	// Sheet is the rooms sheet the room was read from.
	Sheet string
}

// CandidateBed is one bed column of the rooms sheet.
type CandidateBed struct {
	Code     string
	Name     string
	RoomCode string
	Column   int
}

// BedCodes returns the codes of the room's beds in sheet order.
func (r CandidateRoom) BedCodes() []string {
	codes := make([]string, len(r.Beds))
	for i, b := range r.Beds {
		codes[i] = b.Code
	}
	return codes
}
