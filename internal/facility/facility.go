// Package facility defines the persisted approved-premises catalog: premises,
// their rooms and beds, and the characteristic flags attached to them.
package facility

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Service and model scopes for characteristics.
const (
	ServiceApprovedPremises = "approved-premises"

	ModelPremises = "premises"
	ModelRoom     = "room"
)

// Gender is the population a premises accepts.
type Gender string

const (
	GenderMan   Gender = "MAN"
	GenderWoman Gender = "WOMAN"
)

// Characteristic is a boolean facility flag with a stable property name.
type Characteristic struct {
	ID           uuid.UUID `json:"id" db:"id"`
	PropertyName string    `json:"property_name" db:"property_name"`
	Name         string    `json:"name" db:"name"`
	ServiceScope string    `json:"service_scope" db:"service_scope"`
	ModelScope   string    `json:"model_scope" db:"model_scope"`
}

// Characteristics is a set of characteristics kept sorted by property name.
type Characteristics []Characteristic

// NewCharacteristics returns a sorted, de-duplicated set.
func NewCharacteristics(cs ...Characteristic) Characteristics {
	seen := make(map[uuid.UUID]bool, len(cs))
	out := make(Characteristics, 0, len(cs))
	for _, c := range cs {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PropertyName < out[j].PropertyName })
	return out
}

// Names returns the sorted property names.
func (cs Characteristics) Names() []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.PropertyName
	}
	sort.Strings(names)
	return names
}

// IDs returns the characteristic identifiers in set order.
func (cs Characteristics) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

// Equal reports whether both sets hold the same characteristics.
func (cs Characteristics) Equal(other Characteristics) bool {
	if len(cs) != len(other) {
		return false
	}
	set := make(map[uuid.UUID]bool, len(cs))
	for _, c := range cs {
		set[c.ID] = true
	}
	for _, c := range other {
		if !set[c.ID] {
			return false
		}
	}
	return true
}

// ProbationRegion is a reference-data region.
type ProbationRegion struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}

// LocalAuthorityArea is a reference-data local authority.
type LocalAuthorityArea struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Identifier string    `json:"identifier" db:"identifier"`
	Name       string    `json:"name" db:"name"`
}

// Geocode is a WGS84 coordinate.
type Geocode struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Premises is an approved premises, keyed naturally by QCode.
type Premises struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	QCode                string          `json:"q_code" db:"q_code"`
	Name                 string          `json:"name" db:"name"`
	AddressLine1         string          `json:"address_line1" db:"address_line1"`
	AddressLine2         *string         `json:"address_line2,omitempty" db:"address_line2"`
	Town                 string          `json:"town" db:"town"`
	Postcode             string          `json:"postcode" db:"postcode"`
	Geocode              Geocode         `json:"geocode"`
	Gender               Gender          `json:"gender" db:"gender"`
	ProbationRegionID    uuid.UUID       `json:"probation_region_id" db:"probation_region_id"`
	LocalAuthorityAreaID uuid.UUID       `json:"local_authority_area_id" db:"local_authority_area_id"`
	Characteristics      Characteristics `json:"characteristics"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// Room belongs to one premises and is keyed by Code within it.
type Room struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	PremisesID      uuid.UUID       `json:"premises_id" db:"premises_id"`
	Code            string          `json:"code" db:"code"`
	Name            string          `json:"name" db:"name"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	Characteristics Characteristics `json:"characteristics"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Bed belongs to one room. Code is globally unique.
type Bed struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RoomID    uuid.UUID `json:"room_id" db:"room_id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Booking reserves a bed. Survey imports never read or write bookings; the
// type exists so stores can prove they survive an import.
type Booking struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BedID     uuid.UUID `json:"bed_id" db:"bed_id"`
	CRN       string    `json:"crn" db:"crn"`
	ArrivalOn time.Time `json:"arrival_on" db:"arrival_on"`
}
