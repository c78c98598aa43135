package sitesurvey

import (
	"strconv"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
)

// Unit is one parsed bed column of a rooms sheet.
type Unit struct {
	Column          int
	RoomIdentifier  string
	BedCode         string
	BedName         string
	Notes           *string
	Characteristics facility.Characteristics
}

// RoomCode builds the natural key of a room within a facility.
func RoomCode(facilityCode, roomIdentifier string) string {
	return facilityCode + "-" + roomIdentifier
}

// GroupUnits partitions bed columns into rooms by room identifier, in order of
// first appearance. Beds of one room must carry identical characteristics
// and must not give different non-blank notes. Bed codes must not repeat and
// derived bed names must be unique.
func GroupUnits(sheet, facilityCode string, units []Unit) ([]CandidateRoom, error) {
	var rooms []CandidateRoom
	index := make(map[string]int)
	codeColumn := make(map[string]int)
	nameCode := make(map[string]string)
	notesBed := make(map[string]string)

	for _, u := range units {
		if prev, ok := codeColumn[u.BedCode]; ok {
			return nil, &survey.Error{
				Kind:   survey.KindMalformedSheet,
				Sheet:  sheet,
				Column: u.Column,
				Codes:  []string{u.BedCode},
				Detail: "bed reference also used in column " + strconv.Itoa(prev),
			}
		}
		codeColumn[u.BedCode] = u.Column

		if other, ok := nameCode[u.BedName]; ok {
			return nil, survey.DuplicateBedName(sheet, u.BedName, other, u.BedCode)
		}
		nameCode[u.BedName] = u.BedCode

		code := RoomCode(facilityCode, u.RoomIdentifier)
		bed := CandidateBed{Code: u.BedCode, Name: u.BedName, RoomCode: code, Column: u.Column}

		i, ok := index[code]
		if !ok {
			index[code] = len(rooms)
			rooms = append(rooms, CandidateRoom{
				Code:            code,
				Name:            u.RoomIdentifier,
				Notes:           u.Notes,
				Characteristics: u.Characteristics,
				Beds:            []CandidateBed{bed},
				Sheet:           sheet,
			})
			if u.Notes != nil {
				notesBed[code] = u.BedCode
			}
			continue
		}

		room := &rooms[i]
		if !room.Characteristics.Equal(u.Characteristics) {
			return nil, survey.RoomCharacteristicConflict(sheet, code, room.Beds[0].Code, u.BedCode)
		}
		switch {
		case u.Notes == nil:
		case room.Notes == nil:
			room.Notes = u.Notes
			notesBed[code] = u.BedCode
		case *room.Notes != *u.Notes:
			return nil, &survey.Error{
				Kind:   survey.KindMalformedSheet,
				Sheet:  sheet,
				Column: u.Column,
				Codes:  []string{code, notesBed[code], u.BedCode},
				Detail: "beds in room " + code + " have different notes",
			}
		}
		room.Beds = append(room.Beds, bed)
	}
	return rooms, nil
}
