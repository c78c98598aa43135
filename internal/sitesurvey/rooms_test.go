package sitesurvey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitesurvey-cli/internal/survey"
)

func numberedSheet(t *testing.T, groundFloor2 string) *survey.Grid {
	t.Helper()
	return sheet(t, "Sheet3",
		row("Question", "BED01", "BED02", "BED03"),
		row("Unique Reference Number for Bed", "SWABI01NEW", "SWABI02NEW", "SWABI03NEW"),
		row("Room Number / Name", 4.0, 4.0, "Garden"),
		row("Bed Number (in this room i.e if this is a shared room)", 1.0, 2.0, 1.0),
		row("Room notes", "", "bunk beds", nil),
		row("Is this room located on the ground floor?", "Yes", groundFloor2, "No"),
		row("Does this room have an en-suite bathroom?", "N/A", "n/a", "Yes"),
	)
}

func TestDetectDialect(t *testing.T) {
	d, err := DetectDialect(numberedSheet(t, "Yes"))
	require.NoError(t, err)
	assert.Equal(t, DialectNumbered, d)
	assert.Equal(t, "numbered", d.String())

	g := sheet(t, "Sheet3",
		row("Question", "BED01"),
		row("Unique Reference Number for Bed", "SWABI01NEW"),
		row("Room Number / Name", 4.0),
	)
	d, err = DetectDialect(g)
	require.NoError(t, err)
	assert.Equal(t, DialectReference, d)

	g = sheet(t, "Sheet3",
		row("Question", "BED01"),
		row("Room Number / Name", 4.0),
	)
	_, err = DetectDialect(g)
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindMalformedSheet))
	assert.Contains(t, err.Error(), "Unique Reference Number for Bed")
}

func TestParseRooms_Numbered(t *testing.T) {
	bound, _ := testBound(t)

	rooms, err := ParseRooms(numberedSheet(t, "yes"), bound, "Q999")
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	four := rooms[0]
	assert.Equal(t, "Q999-4", four.Code)
	assert.Equal(t, "4", four.Name)
	assert.Equal(t, []string{"isGroundFloor"}, four.Characteristics.Names())
	require.Len(t, four.Beds, 2)
	assert.Equal(t, "SWABI01NEW", four.Beds[0].Code)
	assert.Equal(t, "4 - 1", four.Beds[0].Name)
	assert.Equal(t, "4 - 2", four.Beds[1].Name)
	require.NotNil(t, four.Notes)
	assert.Equal(t, "bunk beds", *four.Notes)

	garden := rooms[1]
	assert.Equal(t, "Q999-Garden", garden.Code)
	assert.Equal(t, []string{"hasEnSuite"}, garden.Characteristics.Names())
	assert.Nil(t, garden.Notes)
	assert.Equal(t, "Garden - 1", garden.Beds[0].Name)
}

func TestParseRooms_Reference(t *testing.T) {
	bound, _ := testBound(t)
	g := sheet(t, "Sheet3",
		row("Question", "BED01", "BED02"),
		row("Unique Reference Number for Bed", "SWABI01NEW", "SWABI02NEW"),
		row("Room Number / Name", 7.0, 8.0),
		row("Is this room located on the ground floor?", "No", "No"),
		row("Does this room have an en-suite bathroom?", "Yes", "No"),
	)

	rooms, err := ParseRooms(g, bound, "Q999")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Q999-7", rooms[0].Code)
	assert.Equal(t, "SWABI01NEW", rooms[0].Beds[0].Name)
	assert.Equal(t, "SWABI02NEW", rooms[1].Beds[0].Name)
}

func TestParseRooms_ConflictAcrossBeds(t *testing.T) {
	bound, _ := testBound(t)

	_, err := ParseRooms(numberedSheet(t, "No"), bound, "Q999")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindRoomCharacteristicConflict))
	assert.Contains(t, err.Error(), "Q999-4")
}

func TestParseRooms_InvalidBooleanNamesColumn(t *testing.T) {
	bound, _ := testBound(t)

	_, err := ParseRooms(numberedSheet(t, "perhaps"), bound, "Q999")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindInvalidBoolean))
	assert.Contains(t, err.Error(), "perhaps")
	assert.Contains(t, err.Error(), "column 2")
}

func TestParseRooms_MissingBedNumber(t *testing.T) {
	bound, _ := testBound(t)
	g := sheet(t, "Sheet3",
		row("Question", "BED01"),
		row("Unique Reference Number for Bed", "SWABI01NEW"),
		row("Room Number / Name", 4.0),
		row("Bed Number (in this room i.e if this is a shared room)", nil),
		row("Is this room located on the ground floor?", "Yes"),
		row("Does this room have an en-suite bathroom?", "Yes"),
	)

	_, err := ParseRooms(g, bound, "Q999")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindMissingAnswer))
}

func TestParseRooms_NoBedColumns(t *testing.T) {
	bound, _ := testBound(t)
	g := sheet(t, "Sheet3",
		row("Question", "BED01"),
		row("Unique Reference Number for Bed", nil),
		row("Room Number / Name", nil),
	)

	_, err := ParseRooms(g, bound, "Q999")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindMalformedSheet))
}

func TestParseRooms_DuplicateBedNumberRow(t *testing.T) {
	bound, _ := testBound(t)
	g := sheet(t, "Sheet3",
		row("Question", "BED01", "BED02"),
		row("Unique Reference Number for Bed", "SWABI01NEW", "SWABI02NEW"),
		row("Room Number / Name", 4.0, 4.0),
		row("Bed Number (in this room i.e if this is a shared room)", 1.0, 2.0),
		row("Bed Number (in this room i.e if this is a shared room)", 1.0, 2.0),
		row("Is this room located on the ground floor?", "Yes", "Yes"),
		row("Does this room have an en-suite bathroom?", "No", "No"),
	)

	_, err := DetectDialect(g)
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindMalformedSheet))
	assert.Contains(t, err.Error(), "more than one row")

	rooms, err := ParseRooms(g, bound, "Q999")
	require.Error(t, err)
	assert.Nil(t, rooms)
	assert.True(t, survey.IsKind(err, survey.KindMalformedSheet))
}

func TestParseRooms_AmbiguousNotesRow(t *testing.T) {
	bound, _ := testBound(t)
	g := sheet(t, "Sheet3",
		row("Question", "BED01"),
		row("Unique Reference Number for Bed", "SWABI01NEW"),
		row("Room Number / Name", 4.0),
		row("Room notes", "bunk beds"),
		row("Room notes (continued)", "near the office"),
		row("Is this room located on the ground floor?", "Yes"),
		row("Does this room have an en-suite bathroom?", "No"),
	)

	_, err := ParseRooms(g, bound, "Q999")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindMalformedSheet))
	assert.Contains(t, err.Error(), "Room notes")
}

func TestParseRooms_RoomsCarrySheet(t *testing.T) {
	bound, _ := testBound(t)

	rooms, err := ParseRooms(numberedSheet(t, "yes"), bound, "Q999")
	require.NoError(t, err)
	for _, r := range rooms {
		assert.Equal(t, "Sheet3", r.Sheet)
	}
}
