package survey

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid("Sheet3", [][]Cell{
		{Text("Question"), Text("BED01"), Text("BED02"), Text("BED03")},
		{Text("Room Number / Name"), Number(4), Number(4), Number(4.5)},
		{Text("Is this room located on the ground floor?"), Text("Yes"), Text(" yes "), Text("N/A")},
		{Text("Is this bed in a single room?"), Text("No"), Text("maybe")},
		{Text("Room notes (optional)"), Text("  near office "), Empty()},
		{Text("Is there a hearing loop?"), Text("Yes")},
		{Text("Is there a hearing loop in the lounge?"), Text("No")},
	})
	require.NoError(t, err)
	return g
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.0, "1"},
		{1.1, "1.1"},
		{4, "4"},
		{-12, "-12"},
		{0, "0"},
		{1234567, "1234567"},
		{0.25, "0.25"},
		{-(1 << 63), "-9223372036854775808"},
		{1 << 63, "9223372036854775808"},
		{1e20, "100000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

func TestCell_String(t *testing.T) {
	assert.Equal(t, "1", Number(1.0).String())
	assert.Equal(t, "1.1", Number(1.1).String())
	assert.Equal(t, "abc", Text("  abc ").String())
	assert.Equal(t, "", Empty().String())
	assert.True(t, Text("   ").IsBlank())
	assert.False(t, Number(0).IsBlank())
}

func TestNewGrid_RequiresAnswerColumn(t *testing.T) {
	_, err := NewGrid("Sheet2", [][]Cell{{Text("Question")}, {Text("Name of AP")}})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformedSheet))
	assert.Contains(t, err.Error(), "Sheet2")
}

func TestGrid_UnitColumns(t *testing.T) {
	g := testGrid(t)
	assert.Equal(t, []int{1, 2, 3}, g.UnitColumns())
	assert.Equal(t, "BED02", g.Header(2).String())
}

func TestFindRow_ExactIsCaseInsensitive(t *testing.T) {
	g := testGrid(t)
	row, err := g.FindRow(Exact("IS THIS ROOM LOCATED ON THE GROUND FLOOR?"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)
}

func TestFindRow_Prefix(t *testing.T) {
	g := testGrid(t)
	row, err := g.FindRow(StartsWith("room notes"))
	require.NoError(t, err)
	assert.Equal(t, 4, row)
}

func TestFindRow_Missing(t *testing.T) {
	g := testGrid(t)
	_, err := g.FindRow(Exact("Does the room have a window?"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformedSheet))
	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, err.Error(), "Sheet3")
}

func TestFindRow_Ambiguous(t *testing.T) {
	g := testGrid(t)
	_, err := g.FindRow(StartsWith("Is there a hearing loop"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformedSheet))
	assert.Contains(t, err.Error(), "more than one row")

	// The exact label still resolves.
	row, err := g.FindOptionalRow(Exact("Is there a hearing loop?"))
	require.NoError(t, err)
	assert.Positive(t, row)
}

func TestFindOptionalRow(t *testing.T) {
	g := testGrid(t)

	row, err := g.FindOptionalRow(Exact("Is there a lift?"))
	require.NoError(t, err)
	assert.Equal(t, -1, row)

	_, err = g.FindOptionalRow(StartsWith("Is there a hearing loop"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformedSheet))
	assert.Contains(t, err.Error(), "more than one row")
}

func TestAnswer_NormalizesNumbers(t *testing.T) {
	g := testGrid(t)
	v, err := g.Answer(Exact("Room Number / Name"), 1)
	require.NoError(t, err)
	assert.Equal(t, "4", v)

	v, err = g.Answer(Exact("Room Number / Name"), 3)
	require.NoError(t, err)
	assert.Equal(t, "4.5", v)
}

func TestAnswer_Blank(t *testing.T) {
	g := testGrid(t)
	_, err := g.Answer(StartsWith("Room notes"), 2)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMissingAnswer))

	opt, err := g.OptionalAnswer(StartsWith("Room notes"), 2)
	require.NoError(t, err)
	assert.Nil(t, opt)

	opt, err = g.OptionalAnswer(StartsWith("Room notes"), 1)
	require.NoError(t, err)
	require.NotNil(t, opt)
	assert.Equal(t, "near office", *opt)
}

func TestGrid_YesNo(t *testing.T) {
	g := testGrid(t)
	q := Exact("Is this room located on the ground floor?")

	v, err := g.YesNo(q, 1)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = g.YesNo(q, 2)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = g.YesNo(q, 3)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidBoolean))

	v, err = g.YesNoOrNA(q, 3)
	require.NoError(t, err)
	assert.False(t, v)

	_, err = g.YesNo(Exact("Is this bed in a single room?"), 3)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMissingAnswer))
}

func TestAsYesNoOrNA(t *testing.T) {
	v, err := AsYesNoOrNA("yes", "q")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = AsYesNoOrNA("no", "q")
	require.NoError(t, err)
	assert.False(t, v)

	v, err = AsYesNoOrNA("N/A", "q")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = AsYesNoOrNA("maybe", "Is this bed in a single room?")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidBoolean))
	assert.Contains(t, err.Error(), "maybe")
	assert.Contains(t, err.Error(), "Is this bed in a single room?")
}

func TestAsYesNo_RejectsNA(t *testing.T) {
	_, err := AsYesNo("n/a", "q")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidBoolean))
}

func TestAsStrings(t *testing.T) {
	v, err := AsRequiredString("  Hope House ", "Name of AP")
	require.NoError(t, err)
	assert.Equal(t, "Hope House", v)

	_, err = AsRequiredString("   ", "Name of AP")
	assert.True(t, IsKind(err, KindMissingAnswer))

	assert.Nil(t, AsOptionalString(" "))
	require.NotNil(t, AsOptionalString(" x "))
	assert.Equal(t, "x", *AsOptionalString(" x "))
}

func TestIsKind_ThroughWrapping(t *testing.T) {
	err := eris.Wrap(RoomCharacteristicConflict("Sheet3", "Q999-4", "BED01", "BED02"), "import rooms")
	assert.True(t, IsKind(err, KindRoomCharacteristicConflict))
	assert.Equal(t, KindRoomCharacteristicConflict, KindOf(err))
	assert.Contains(t, err.Error(), "Q999-4")
	assert.False(t, IsKind(err, KindBedRoomMismatch))
	assert.Equal(t, Kind(""), KindOf(eris.New("boom")))
}
