package facility

import (
	"context"

	"github.com/google/uuid"
)

// CharacteristicStore looks up and seeds characteristics.
type CharacteristicStore interface {
	FindCharacteristic(ctx context.Context, propertyName, serviceScope, modelScope string) (*Characteristic, error)
	UpsertCharacteristics(ctx context.Context, cs []Characteristic) (int64, error)
}

// ReferenceStore looks up region and local authority reference data by name.
type ReferenceStore interface {
	FindProbationRegionByName(ctx context.Context, name string) (*ProbationRegion, error)
	FindLocalAuthorityAreaByName(ctx context.Context, name string) (*LocalAuthorityArea, error)
}

// FacilityStore reads and writes premises, rooms and beds. Finders return
// nil, nil when nothing matches. Save methods upsert by ID and replace the
// characteristic links of the entity; they never touch bookings.
type FacilityStore interface { //nolint:revive // stutters but reads better at call sites
	FindPremisesByQCode(ctx context.Context, qCode string) (*Premises, error)
	FindRoomByCode(ctx context.Context, premisesID uuid.UUID, code string) (*Room, error)
	FindRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
	FindBedByCode(ctx context.Context, code string) (*Bed, error)
	ListBedsByRoom(ctx context.Context, roomID uuid.UUID) ([]Bed, error)

	SavePremises(ctx context.Context, p *Premises) error
	SaveRoom(ctx context.Context, r *Room) error
	SaveBed(ctx context.Context, b *Bed) error
}

// Repository is everything an import reads or writes.
type Repository interface {
	CharacteristicStore
	ReferenceStore
	FacilityStore
}

// Tx is a Repository bound to one database transaction.
type Tx interface {
	Repository

	// LockFacility serializes imports of the same facility until the
	// transaction ends.
	LockFacility(ctx context.Context, qCode string) error
}

// Store is a transactional Repository.
type Store interface {
	Repository

	// InTx runs fn in one transaction, committing when fn returns nil and
	// rolling back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Migrate(ctx context.Context) error
	Close() error
}
