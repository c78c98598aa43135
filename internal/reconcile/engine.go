// Package reconcile upserts parsed survey candidates against the facility
// store. Each entity is matched by natural key and either created or updated
// in place. Updates replace survey-sourced fields and the characteristic set,
// leave everything else alone, and are skipped when nothing changed.
//
// Every call plans first (all lookups and conflict checks) and only then
// writes, so a conflict found anywhere in a sheet leaves the store untouched
// even before the surrounding transaction rolls back.
package reconcile

import (
	"context"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/refdata"
	"github.com/sells-group/sitesurvey-cli/internal/sitesurvey"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
)

// Outcome is what happened to one entity.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Counts tallies outcomes for one entity kind.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

func (c *Counts) add(o Outcome) {
	switch o {
	case OutcomeCreated:
		c.Created++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeUnchanged:
		c.Unchanged++
	}
}

// Writes is the number of created plus updated entities.
func (c Counts) Writes() int { return c.Created + c.Updated }

// Result summarizes one reconciliation.
type Result struct {
	PremisesID uuid.UUID `json:"premises_id"`
	Premises   Counts    `json:"premises"`
	Rooms      Counts    `json:"rooms"`
	Beds       Counts    `json:"beds"`
	// BedsRetained counts existing beds of surveyed rooms that the survey no
	// longer lists. They are left in place.
	BedsRetained int `json:"beds_retained"`
}

// Writes is the total number of entities created or updated.
func (r Result) Writes() int {
	return r.Premises.Writes() + r.Rooms.Writes() + r.Beds.Writes()
}

// Engine reconciles candidates through one FacilityStore, normally the
// transaction of the current import.
type Engine struct {
	store facility.FacilityStore
}

// New creates an Engine over store.
func New(store facility.FacilityStore) *Engine {
	return &Engine{store: store}
}

// ReconcilePremises creates or updates the premises identified by the
// candidate's qCode.
func (e *Engine) ReconcilePremises(ctx context.Context, cand *sitesurvey.CandidatePremises, refs *refdata.Resolved) (*facility.Premises, Outcome, error) {
	existing, err := e.store.FindPremisesByQCode(ctx, cand.QCode)
	if err != nil {
		return nil, "", err
	}

	if existing == nil {
		p := &facility.Premises{ID: uuid.New(), QCode: cand.QCode}
		applyPremises(p, cand, refs)
		if err := e.store.SavePremises(ctx, p); err != nil {
			return nil, "", err
		}
		zap.L().Info("premises created", zap.String("q_code", p.QCode), zap.String("id", p.ID.String()))
		return p, OutcomeCreated, nil
	}

	before := snapshotPremises(existing)
	updated := *existing
	applyPremises(&updated, cand, refs)
	if !changed("premises", existing.QCode, before, snapshotPremises(&updated)) {
		return existing, OutcomeUnchanged, nil
	}
	if err := e.store.SavePremises(ctx, &updated); err != nil {
		return nil, "", err
	}
	return &updated, OutcomeUpdated, nil
}

// applyPremises copies the survey-sourced fields onto p.
func applyPremises(p *facility.Premises, cand *sitesurvey.CandidatePremises, refs *refdata.Resolved) {
	p.Name = cand.Name
	p.AddressLine1 = cand.AddressLine1
	p.AddressLine2 = cand.AddressLine2
	p.Town = cand.Town
	p.Postcode = cand.Postcode
	p.Gender = cand.Gender
	p.ProbationRegionID = refs.Region.ID
	p.LocalAuthorityAreaID = refs.LocalAuthorityArea.ID
	p.Geocode = refs.Geocode
	p.Characteristics = cand.Characteristics
}

// roomPlan is the planned write for one candidate room.
type roomPlan struct {
	room     *facility.Room
	outcome  Outcome
	beds     []bedPlan
	retained int
}

type bedPlan struct {
	bed     *facility.Bed
	outcome Outcome
}

// ReconcileRooms creates or updates every candidate room of a premises and
// their beds. A bed already attached to another room aborts the whole call
// before anything is written.
func (e *Engine) ReconcileRooms(ctx context.Context, premisesID uuid.UUID, rooms []sitesurvey.CandidateRoom) (Result, error) {
	res := Result{PremisesID: premisesID}
	if premisesID == uuid.Nil {
		return res, ErrPremisesRequired
	}

	plans := make([]roomPlan, 0, len(rooms))
	for _, cand := range rooms {
		plan, err := e.planRoom(ctx, premisesID, cand)
		if err != nil {
			return res, err
		}
		plans = append(plans, plan)
	}

	for _, plan := range plans {
		if plan.outcome != OutcomeUnchanged {
			if err := e.store.SaveRoom(ctx, plan.room); err != nil {
				return res, err
			}
		}
		res.Rooms.add(plan.outcome)
		res.BedsRetained += plan.retained

		for _, bp := range plan.beds {
			if bp.outcome != OutcomeUnchanged {
				if err := e.store.SaveBed(ctx, bp.bed); err != nil {
					return res, err
				}
			}
			res.Beds.add(bp.outcome)
		}
	}

	zap.L().Info("rooms reconciled",
		zap.String("premises_id", premisesID.String()),
		zap.Int("rooms_created", res.Rooms.Created),
		zap.Int("rooms_updated", res.Rooms.Updated),
		zap.Int("rooms_unchanged", res.Rooms.Unchanged),
		zap.Int("beds_created", res.Beds.Created),
		zap.Int("beds_updated", res.Beds.Updated),
		zap.Int("beds_unchanged", res.Beds.Unchanged),
		zap.Int("beds_retained", res.BedsRetained),
	)
	return res, nil
}

func (e *Engine) planRoom(ctx context.Context, premisesID uuid.UUID, cand sitesurvey.CandidateRoom) (roomPlan, error) {
	existing, err := e.store.FindRoomByCode(ctx, premisesID, cand.Code)
	if err != nil {
		return roomPlan{}, err
	}

	var plan roomPlan
	if existing == nil {
		plan.room = &facility.Room{ID: uuid.New(), PremisesID: premisesID, Code: cand.Code}
		applyRoom(plan.room, cand)
		plan.outcome = OutcomeCreated
	} else {
		updated := *existing
		applyRoom(&updated, cand)
		plan.room = &updated
		plan.outcome = OutcomeUpdated
		if !changed("room", cand.Code, snapshotRoom(existing), snapshotRoom(&updated)) {
			plan.outcome = OutcomeUnchanged
		}
	}

	for _, cb := range cand.Beds {
		bp, err := e.planBed(ctx, plan.room, cand.Sheet, cb)
		if err != nil {
			return roomPlan{}, err
		}
		plan.beds = append(plan.beds, bp)
	}

	if existing != nil {
		if plan.retained, err = e.countRetained(ctx, existing, cand); err != nil {
			return roomPlan{}, err
		}
	}
	return plan, nil
}

// countRetained counts beds stored under room that cand does not list.
func (e *Engine) countRetained(ctx context.Context, room *facility.Room, cand sitesurvey.CandidateRoom) (int, error) {
	stored, err := e.store.ListBedsByRoom(ctx, room.ID)
	if err != nil {
		return 0, err
	}
	listed := make(map[string]bool, len(cand.Beds))
	for _, b := range cand.Beds {
		listed[b.Code] = true
	}
	var retained []string
	for _, b := range stored {
		if !listed[b.Code] {
			retained = append(retained, b.Code)
		}
	}
	if len(retained) > 0 {
		zap.L().Info("beds not in survey left in place",
			zap.String("room", room.Code),
			zap.Strings("beds", retained),
		)
	}
	return len(retained), nil
}

func (e *Engine) planBed(ctx context.Context, room *facility.Room, sheet string, cand sitesurvey.CandidateBed) (bedPlan, error) {
	existing, err := e.store.FindBedByCode(ctx, cand.Code)
	if err != nil {
		return bedPlan{}, err
	}
	if existing == nil {
		return bedPlan{
			bed:     &facility.Bed{ID: uuid.New(), RoomID: room.ID, Code: cand.Code, Name: cand.Name},
			outcome: OutcomeCreated,
		}, nil
	}

	if existing.RoomID != room.ID {
		current := existing.RoomID.String()
		owner, err := e.store.FindRoomByID(ctx, existing.RoomID)
		if err != nil {
			return bedPlan{}, err
		}
		if owner != nil {
			current = owner.Code
		}
		return bedPlan{}, survey.BedRoomMismatch(sheet, cand.Column, cand.Code, current, room.Code)
	}

	if existing.Name == cand.Name {
		return bedPlan{bed: existing, outcome: OutcomeUnchanged}, nil
	}
	updated := *existing
	updated.Name = cand.Name
	zap.L().Debug("bed renamed", zap.String("code", cand.Code), zap.String("from", existing.Name), zap.String("to", cand.Name))
	return bedPlan{bed: &updated, outcome: OutcomeUpdated}, nil
}

// applyRoom copies the survey-sourced fields onto r.
func applyRoom(r *facility.Room, cand sitesurvey.CandidateRoom) {
	r.Name = cand.Name
	r.Notes = cand.Notes
	r.Characteristics = cand.Characteristics
}

// premisesImage holds the survey-sourced fields of a premises.
type premisesImage struct {
	Name                 string
	AddressLine1         string
	AddressLine2         string
	Town                 string
	Postcode             string
	Gender               facility.Gender
	Latitude             float64
	Longitude            float64
	ProbationRegionID    uuid.UUID
	LocalAuthorityAreaID uuid.UUID
	Characteristics      []string
}

func snapshotPremises(p *facility.Premises) premisesImage {
	return premisesImage{
		Name:                 p.Name,
		AddressLine1:         p.AddressLine1,
		AddressLine2:         deref(p.AddressLine2),
		Town:                 p.Town,
		Postcode:             p.Postcode,
		Gender:               p.Gender,
		Latitude:             p.Geocode.Latitude,
		Longitude:            p.Geocode.Longitude,
		ProbationRegionID:    p.ProbationRegionID,
		LocalAuthorityAreaID: p.LocalAuthorityAreaID,
		Characteristics:      p.Characteristics.Names(),
	}
}

// roomImage holds the survey-sourced fields of a room.
type roomImage struct {
	Name            string
	Notes           string
	Characteristics []string
}

func snapshotRoom(r *facility.Room) roomImage {
	return roomImage{
		Name:            r.Name,
		Notes:           deref(r.Notes),
		Characteristics: r.Characteristics.Names(),
	}
}

// changed compares pre- and post-images, logging the outcome.
func changed[T any](entity, key string, before, after T) bool {
	diff := cmp.Diff(before, after)
	if diff == "" {
		zap.L().Info("no changes detected", zap.String("entity", entity), zap.String("key", key))
		return false
	}
	zap.L().Debug("changes detected", zap.String("entity", entity), zap.String("key", key), zap.String("diff", diff))
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ErrPremisesRequired is returned when rooms are reconciled without a premises.
var ErrPremisesRequired = eris.New("reconcile: premises id is required")
