package siteimport

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/fetcher"
	"github.com/sells-group/sitesurvey-cli/internal/metrics"
	"github.com/sells-group/sitesurvey-cli/internal/reconcile"
	"github.com/sells-group/sitesurvey-cli/internal/refdata"
	"github.com/sells-group/sitesurvey-cli/internal/store"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
	"github.com/sells-group/sitesurvey-cli/internal/taxonomy"
	"github.com/sells-group/sitesurvey-cli/pkg/postcodes"
)

const testTable = `
premises:
  - question: "Is there a lift at this AP?"
    property: hasLift
rooms:
  - question: "Is this room located on the ground floor?"
    property: isGroundFloor
  - question: "Does this room have an en-suite bathroom?"
    property: hasEnSuite
    coercion: yes_no_na
`

type fakePostcodes struct{}

func (fakePostcodes) Lookup(_ context.Context, pc string) (*postcodes.Result, error) {
	if pc != "BB1 1AA" {
		return nil, postcodes.ErrNotFound
	}
	return &postcodes.Result{Postcode: pc, Latitude: 53.7486, Longitude: -2.4823}, nil
}

type fixture struct {
	store    *store.SQLiteStore
	service  *Service
	recorder *metrics.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "survey.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.SaveProbationRegion(ctx, &facility.ProbationRegion{Name: "North West"}))
	require.NoError(t, st.SaveLocalAuthorityArea(ctx, &facility.LocalAuthorityArea{Identifier: "E06000008", Name: "Blackburn with Darwen"}))

	tax, err := taxonomy.Parse([]byte(testTable))
	require.NoError(t, err)
	_, err = st.UpsertCharacteristics(ctx, tax.Characteristics())
	require.NoError(t, err)

	rec := metrics.NewRecorder()
	svc := NewService(st, tax, refdata.NewResolver(st, fakePostcodes{}),
		Options{PremisesSheet: "Sheet2", RoomsSheet: "Sheet3"},
		WithRecorder(rec),
	)
	return &fixture{store: st, service: svc, recorder: rec}
}

// premisesRows answers the premises sheet for Q999.
func premisesRows(name string) [][]any {
	return [][]any{
		{"Question", "Answer"},
		{"AP Identifier (Q No.)", "Q999"},
		{"Name of AP", name},
		{"Building/Street", "1 Hope Street"},
		{"Address Line 2", ""},
		{"Town/City", "Blackburn"},
		{"Postcode", "bb1  1aa"},
		{"Probation Region", "north west"},
		{"Local Authority Area", "Blackburn with Darwen"},
		{"Male/Female AP?", "Male"},
		{"Is there a lift at this AP?", "Yes"},
	}
}

// roomsRows is the two-bed room "4" example plus an optional notes row.
func roomsRows(groundFloor2, notes string) [][]any {
	return [][]any{
		{"Question", "BED01", "BED02"},
		{"Unique Reference Number for Bed", "BED01", "BED02"},
		{"Room Number / Name", 4.0, 4.0},
		{"Bed Number (in this room i.e if this is a shared room)", 1.0, 2.0},
		{"Room notes", notes, ""},
		{"Is this room located on the ground floor?", "Yes", groundFloor2},
		{"Does this room have an en-suite bathroom?", "N/A", "N/A"},
	}
}

func workbook(t *testing.T, sheets map[string][][]any) *fetcher.Workbook {
	t.Helper()
	f := xlsx.NewFile()
	for _, name := range []string{"Sheet2", "Sheet3"} {
		if rows, ok := sheets[name]; ok {
			writeSheet(t, f, name, rows)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	wb, err := fetcher.OpenWorkbookBytes("survey.xlsx", buf.Bytes())
	require.NoError(t, err)
	return wb
}

func fullWorkbook(t *testing.T) *fetcher.Workbook {
	return workbook(t, map[string][][]any{"Sheet2": premisesRows("Hope House"), "Sheet3": roomsRows("Yes", "")})
}

func TestImport_CreatesPremisesRoomAndBeds(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	rep, err := fx.service.ImportWorkbook(ctx, fullWorkbook(t), "")
	require.NoError(t, err)
	assert.Equal(t, "Q999", rep.QCode)
	assert.Equal(t, reconcile.Counts{Created: 1}, rep.Premises)
	assert.Equal(t, reconcile.Counts{Created: 1}, rep.Rooms)
	assert.Equal(t, reconcile.Counts{Created: 2}, rep.Beds)

	p, err := fx.store.FindPremisesByQCode(ctx, "Q999")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "BB1 1AA", p.Postcode)
	assert.Equal(t, facility.GenderMan, p.Gender)
	assert.InDelta(t, 53.7486, p.Geocode.Latitude, 1e-6)
	assert.Equal(t, []string{"hasLift"}, p.Characteristics.Names())

	room, err := fx.store.FindRoomByCode(ctx, p.ID, "Q999-4")
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, []string{"isGroundFloor"}, room.Characteristics.Names())

	beds, err := fx.store.ListBedsByRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, beds, 2)
	assert.Equal(t, "BED01", beds[0].Code)
	assert.Equal(t, "4 - 1", beds[0].Name)
	assert.Equal(t, "4 - 2", beds[1].Name)
}

func TestImport_SecondRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.ImportWorkbook(ctx, fullWorkbook(t), "")
	require.NoError(t, err)
	p, err := fx.store.FindPremisesByQCode(ctx, "Q999")
	require.NoError(t, err)

	rep, err := fx.service.ImportWorkbook(ctx, fullWorkbook(t), "")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Writes())
	assert.Equal(t, reconcile.Counts{Unchanged: 1}, rep.Premises)
	assert.Equal(t, reconcile.Counts{Unchanged: 2}, rep.Beds)

	again, err := fx.store.FindPremisesByQCode(ctx, "Q999")
	require.NoError(t, err)
	assert.Equal(t, p.UpdatedAt, again.UpdatedAt)
}

func TestImport_RoomConflictPersistsNothing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	wb := workbook(t, map[string][][]any{"Sheet2": premisesRows("Hope House"), "Sheet3": roomsRows("No", "")})
	_, err := fx.service.ImportWorkbook(ctx, wb, "")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindRoomCharacteristicConflict))
	assert.Contains(t, err.Error(), "Q999-4")

	p, err := fx.store.FindPremisesByQCode(ctx, "Q999")
	require.NoError(t, err)
	assert.Nil(t, p)
	for _, code := range []string{"BED01", "BED02"} {
		b, err := fx.store.FindBedByCode(ctx, code)
		require.NoError(t, err)
		assert.Nil(t, b)
	}
}

func TestImport_BedRelocationRollsBack(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.ImportWorkbook(ctx, fullWorkbook(t), "")
	require.NoError(t, err)
	before, err := fx.store.FindBedByCode(ctx, "BED01")
	require.NoError(t, err)

	moved := [][]any{
		{"Question", "BED01"},
		{"Unique Reference Number for Bed", "BED01"},
		{"Room Number / Name", 5.0},
		{"Bed Number (in this room i.e if this is a shared room)", 1.0},
		{"Is this room located on the ground floor?", "No"},
		{"Does this room have an en-suite bathroom?", "Yes"},
	}
	_, err = fx.service.ImportWorkbook(ctx, workbook(t, map[string][][]any{"Sheet2": premisesRows("Renamed House"), "Sheet3": moved}), "")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindBedRoomMismatch))
	assert.Contains(t, err.Error(), `in sheet "Sheet3" column 1`)

	after, err := fx.store.FindBedByCode(ctx, "BED01")
	require.NoError(t, err)
	assert.Equal(t, before.RoomID, after.RoomID)

	// the premises rename in the same workbook was rolled back too
	p, err := fx.store.FindPremisesByQCode(ctx, "Q999")
	require.NoError(t, err)
	assert.Equal(t, "Hope House", p.Name)
	r5, err := fx.store.FindRoomByCode(ctx, p.ID, "Q999-5")
	require.NoError(t, err)
	assert.Nil(t, r5)
}

func TestImport_NotesUpdatePreservesBookings(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.ImportWorkbook(ctx, fullWorkbook(t), "")
	require.NoError(t, err)
	bed, err := fx.store.FindBedByCode(ctx, "BED01")
	require.NoError(t, err)
	require.NoError(t, fx.store.CreateBooking(ctx, &facility.Booking{BedID: bed.ID, CRN: "X123456", ArrivalOn: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}))

	wb := workbook(t, map[string][][]any{"Sheet3": roomsRows("Yes", "Near the office")})
	rep, err := fx.service.ImportWorkbook(ctx, wb, "Q999")
	require.NoError(t, err)
	assert.Equal(t, reconcile.Counts{Updated: 1}, rep.Rooms)
	assert.Equal(t, reconcile.Counts{Unchanged: 2}, rep.Beds)
	assert.Equal(t, reconcile.Counts{}, rep.Premises)

	p, err := fx.store.FindPremisesByQCode(ctx, "Q999")
	require.NoError(t, err)
	room, err := fx.store.FindRoomByCode(ctx, p.ID, "Q999-4")
	require.NoError(t, err)
	require.NotNil(t, room.Notes)
	assert.Equal(t, "Near the office", *room.Notes)

	beds, err := fx.store.ListBedsByRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, beds, 2)

	bookings, err := fx.store.ListBookingsByBed(ctx, bed.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "X123456", bookings[0].CRN)
}

func TestImport_RoomsOnlyUnknownPremises(t *testing.T) {
	fx := newFixture(t)

	wb := workbook(t, map[string][][]any{"Sheet3": roomsRows("Yes", "")})
	_, err := fx.service.ImportWorkbook(context.Background(), wb, "Q404")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindReferenceDataNotFound))
	assert.Contains(t, err.Error(), "premises not found")
}

func TestImport_UnknownPostcode(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	rows := premisesRows("Hope House")
	rows[6] = []any{"Postcode", "ZZ9 9ZZ"}
	_, err := fx.service.ImportWorkbook(ctx, workbook(t, map[string][][]any{"Sheet2": rows}), "")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindReferenceDataNotFound))

	p, err := fx.store.FindPremisesByQCode(ctx, "Q999")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestImport_PremisesOnlyWorkbook(t *testing.T) {
	fx := newFixture(t)

	rep, err := fx.service.ImportWorkbook(context.Background(), workbook(t, map[string][][]any{"Sheet2": premisesRows("Hope House")}), "")
	require.NoError(t, err)
	assert.Equal(t, reconcile.Counts{Created: 1}, rep.Premises)
	assert.Equal(t, reconcile.Counts{}, rep.Rooms)
}

func TestImport_UnknownCharacteristicFailsFast(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	tax, err := taxonomy.Parse([]byte(testTable + `
  - question: "Is there a hearing loop?"
    property: hasHearingLoop
`))
	require.NoError(t, err)
	svc := NewService(fx.store, tax, refdata.NewResolver(fx.store, fakePostcodes{}), Options{PremisesSheet: "Sheet2", RoomsSheet: "Sheet3"})

	_, err = svc.ImportWorkbook(ctx, fullWorkbook(t), "")
	require.Error(t, err)
	assert.True(t, survey.IsKind(err, survey.KindUnknownCharacteristic))
}

func TestImport_FromFile(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Import(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open file")
}

func TestImportAll_IsolatesFailures(t *testing.T) {
	fx := newFixture(t)
	dir := t.TempDir()

	good := xlsx.NewFile()
	writeSheet(t, good, "Sheet2", premisesRows("Hope House"))
	writeSheet(t, good, "Sheet3", roomsRows("Yes", ""))
	require.NoError(t, good.Save(filepath.Join(dir, "a-good.xlsx")))

	bad := xlsx.NewFile()
	writeSheet(t, bad, "Sheet2", premisesRows("Hope House"))
	writeSheet(t, bad, "Sheet3", roomsRows("No", ""))
	require.NoError(t, bad.Save(filepath.Join(dir, "b-conflict.xlsx")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	sources, err := ListWorkbooks(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	rep, err := fx.service.ImportAll(context.Background(), sources, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	assert.NoError(t, rep.Items[0].Err)
	assert.True(t, survey.IsKind(rep.Items[1].Err, survey.KindRoomCharacteristicConflict))
}

func TestImportAll_Empty(t *testing.T) {
	rep, err := newFixture(t).service.ImportAll(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Zero(t, rep.Succeeded)
}

func writeSheet(t *testing.T, f *xlsx.File, name string, rows [][]any) {
	t.Helper()
	sheet, err := f.AddSheet(name)
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			cell := row.AddCell()
			switch v := v.(type) {
			case float64:
				cell.SetFloat(v)
			case string:
				cell.SetString(v)
			}
		}
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("Q999")
			defer unlock()
			mu.Lock()
			active++
			maxActive = max(maxActive, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
	assert.Zero(t, k.size())
}
