package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/sitesurvey-cli/internal/db"
	"github.com/sells-group/sitesurvey-cli/internal/facility"
)

// PostgresStore implements facility.Store using pgxpool.
type PostgresStore struct {
	pgRepo
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pgRepo: pgRepo{q: pool}, pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, e.g. pgxmock in tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pgRepo: pgRepo{q: pool}, pool: pool}
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS probation_regions (
	id   UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS local_authority_areas (
	id         UUID PRIMARY KEY,
	identifier TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS characteristics (
	id            UUID PRIMARY KEY,
	property_name TEXT NOT NULL,
	name          TEXT NOT NULL,
	service_scope TEXT NOT NULL,
	model_scope   TEXT NOT NULL,
	UNIQUE (property_name, service_scope, model_scope)
);

CREATE TABLE IF NOT EXISTS premises (
	id                      UUID PRIMARY KEY,
	q_code                  TEXT NOT NULL UNIQUE,
	name                    TEXT NOT NULL,
	address_line1           TEXT NOT NULL,
	address_line2           TEXT,
	town                    TEXT NOT NULL,
	postcode                TEXT NOT NULL,
	latitude                DOUBLE PRECISION NOT NULL,
	longitude               DOUBLE PRECISION NOT NULL,
	point                   geometry(Point, 4326),
	gender                  TEXT NOT NULL,
	probation_region_id     UUID NOT NULL REFERENCES probation_regions(id),
	local_authority_area_id UUID NOT NULL REFERENCES local_authority_areas(id),
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS premises_characteristics (
	premises_id       UUID NOT NULL REFERENCES premises(id),
	characteristic_id UUID NOT NULL REFERENCES characteristics(id),
	PRIMARY KEY (premises_id, characteristic_id)
);

CREATE TABLE IF NOT EXISTS rooms (
	id          UUID PRIMARY KEY,
	premises_id UUID NOT NULL REFERENCES premises(id),
	code        TEXT NOT NULL,
	name        TEXT NOT NULL,
	notes       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (premises_id, code)
);

CREATE TABLE IF NOT EXISTS room_characteristics (
	room_id           UUID NOT NULL REFERENCES rooms(id),
	characteristic_id UUID NOT NULL REFERENCES characteristics(id),
	PRIMARY KEY (room_id, characteristic_id)
);

CREATE TABLE IF NOT EXISTS beds (
	id         UUID PRIMARY KEY,
	room_id    UUID NOT NULL REFERENCES rooms(id),
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id         UUID PRIMARY KEY,
	bed_id     UUID NOT NULL REFERENCES beds(id),
	crn        TEXT NOT NULL,
	arrival_on DATE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rooms_premises_id ON rooms(premises_id);
CREATE INDEX IF NOT EXISTS idx_beds_room_id ON beds(room_id);
CREATE INDEX IF NOT EXISTS idx_bookings_bed_id ON bookings(bed_id);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InTx runs fn in a transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx facility.Tx) error) error {
	return db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTx{pgRepo{q: tx}})
	})
}

// UpsertCharacteristics seeds characteristics keyed on property name and scopes.
func (s *PostgresStore) UpsertCharacteristics(ctx context.Context, cs []facility.Characteristic) (int64, error) {
	rows := make([][]any, len(cs))
	for i, c := range cs {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		rows[i] = []any{id, c.PropertyName, c.Name, c.ServiceScope, c.ModelScope}
	}
	var n int64
	err := db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		n, err = db.Merge(ctx, tx, db.MergeSpec{
			Table:   "characteristics",
			Columns: []string{"id", "property_name", "name", "service_scope", "model_scope"},
			Keys:    []string{"property_name", "service_scope", "model_scope"},
			Update:  []string{"name"},
		}, rows)
		return err
	})
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert characteristics")
	}
	return n, nil
}

type pgTx struct {
	pgRepo
}

// LockFacility takes a transaction-scoped advisory lock on the facility code.
func (t *pgTx) LockFacility(ctx context.Context, qCode string) error {
	if _, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, qCode); err != nil {
		return eris.Wrapf(err, "postgres: lock facility %s", qCode)
	}
	return nil
}

// UpsertCharacteristics inside a transaction falls back to row-by-row upserts.
func (t *pgTx) UpsertCharacteristics(ctx context.Context, cs []facility.Characteristic) (int64, error) {
	var n int64
	for _, c := range cs {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		tag, err := t.q.Exec(ctx, `
			INSERT INTO characteristics (id, property_name, name, service_scope, model_scope)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (property_name, service_scope, model_scope) DO UPDATE SET name = EXCLUDED.name`,
			id, c.PropertyName, c.Name, c.ServiceScope, c.ModelScope)
		if err != nil {
			return n, eris.Wrapf(err, "postgres: upsert characteristic %s", c.PropertyName)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

// pgRepo holds the queries shared by the pool and a transaction.
type pgRepo struct {
	q db.Querier
}

const characteristicColumns = `c.id, c.property_name, c.name, c.service_scope, c.model_scope`

func (r pgRepo) FindCharacteristic(ctx context.Context, propertyName, serviceScope, modelScope string) (*facility.Characteristic, error) {
	var c facility.Characteristic
	err := r.q.QueryRow(ctx, `
		SELECT `+characteristicColumns+`
		FROM characteristics c
		WHERE c.property_name = $1 AND c.service_scope = $2 AND c.model_scope = $3`,
		propertyName, serviceScope, modelScope,
	).Scan(&c.ID, &c.PropertyName, &c.Name, &c.ServiceScope, &c.ModelScope)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find characteristic %s", propertyName)
	}
	return &c, nil
}

func (r pgRepo) FindProbationRegionByName(ctx context.Context, name string) (*facility.ProbationRegion, error) {
	var pr facility.ProbationRegion
	err := r.q.QueryRow(ctx, `SELECT id, name FROM probation_regions WHERE lower(name) = lower($1)`, strings.TrimSpace(name)).
		Scan(&pr.ID, &pr.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find probation region %s", name)
	}
	return &pr, nil
}

func (r pgRepo) FindLocalAuthorityAreaByName(ctx context.Context, name string) (*facility.LocalAuthorityArea, error) {
	var la facility.LocalAuthorityArea
	err := r.q.QueryRow(ctx, `SELECT id, identifier, name FROM local_authority_areas WHERE lower(name) = lower($1)`, strings.TrimSpace(name)).
		Scan(&la.ID, &la.Identifier, &la.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find local authority area %s", name)
	}
	return &la, nil
}

const premisesColumns = `id, q_code, name, address_line1, address_line2, town, postcode, latitude, longitude,
	gender, probation_region_id, local_authority_area_id, created_at, updated_at`

func (r pgRepo) FindPremisesByQCode(ctx context.Context, qCode string) (*facility.Premises, error) {
	var p facility.Premises
	var gender string
	err := r.q.QueryRow(ctx, `SELECT `+premisesColumns+` FROM premises WHERE q_code = $1`, qCode).Scan(
		&p.ID, &p.QCode, &p.Name, &p.AddressLine1, &p.AddressLine2, &p.Town, &p.Postcode,
		&p.Geocode.Latitude, &p.Geocode.Longitude,
		&gender, &p.ProbationRegionID, &p.LocalAuthorityAreaID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find premises %s", qCode)
	}
	p.Gender = facility.Gender(gender)

	p.Characteristics, err = r.linkedCharacteristics(ctx, "premises_characteristics", "premises_id", p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r pgRepo) FindRoomByCode(ctx context.Context, premisesID uuid.UUID, code string) (*facility.Room, error) {
	var room facility.Room
	err := r.q.QueryRow(ctx, `
		SELECT id, premises_id, code, name, notes, created_at, updated_at
		FROM rooms WHERE premises_id = $1 AND code = $2`, premisesID, code).
		Scan(&room.ID, &room.PremisesID, &room.Code, &room.Name, &room.Notes, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find room %s", code)
	}

	room.Characteristics, err = r.linkedCharacteristics(ctx, "room_characteristics", "room_id", room.ID)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r pgRepo) FindRoomByID(ctx context.Context, id uuid.UUID) (*facility.Room, error) {
	var room facility.Room
	err := r.q.QueryRow(ctx, `
		SELECT id, premises_id, code, name, notes, created_at, updated_at
		FROM rooms WHERE id = $1`, id).
		Scan(&room.ID, &room.PremisesID, &room.Code, &room.Name, &room.Notes, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find room %s", id)
	}

	room.Characteristics, err = r.linkedCharacteristics(ctx, "room_characteristics", "room_id", room.ID)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r pgRepo) FindBedByCode(ctx context.Context, code string) (*facility.Bed, error) {
	var b facility.Bed
	err := r.q.QueryRow(ctx, `SELECT id, room_id, code, name, created_at FROM beds WHERE code = $1`, code).
		Scan(&b.ID, &b.RoomID, &b.Code, &b.Name, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find bed %s", code)
	}
	return &b, nil
}

func (r pgRepo) ListBedsByRoom(ctx context.Context, roomID uuid.UUID) ([]facility.Bed, error) {
	rows, err := r.q.Query(ctx, `SELECT id, room_id, code, name, created_at FROM beds WHERE room_id = $1 ORDER BY code`, roomID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list beds")
	}
	defer rows.Close()

	var beds []facility.Bed
	for rows.Next() {
		var b facility.Bed
		if err := rows.Scan(&b.ID, &b.RoomID, &b.Code, &b.Name, &b.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bed")
		}
		beds = append(beds, b)
	}
	return beds, eris.Wrap(rows.Err(), "postgres: list beds iterate")
}

func (r pgRepo) SavePremises(ctx context.Context, p *facility.Premises) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	point, err := encodePoint(p.Geocode)
	if err != nil {
		return err
	}

	err = r.q.QueryRow(ctx, `
		INSERT INTO premises (
			id, q_code, name, address_line1, address_line2, town, postcode,
			latitude, longitude, point, gender, probation_region_id, local_authority_area_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, ST_GeomFromEWKB($10), $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			q_code = EXCLUDED.q_code, name = EXCLUDED.name,
			address_line1 = EXCLUDED.address_line1, address_line2 = EXCLUDED.address_line2,
			town = EXCLUDED.town, postcode = EXCLUDED.postcode,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, point = EXCLUDED.point,
			gender = EXCLUDED.gender, probation_region_id = EXCLUDED.probation_region_id,
			local_authority_area_id = EXCLUDED.local_authority_area_id,
			updated_at = now()
		RETURNING created_at, updated_at`,
		p.ID, p.QCode, p.Name, p.AddressLine1, p.AddressLine2, p.Town, p.Postcode,
		p.Geocode.Latitude, p.Geocode.Longitude, point, string(p.Gender),
		p.ProbationRegionID, p.LocalAuthorityAreaID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: save premises %s", p.QCode)
	}
	return r.replaceLinks(ctx, "premises_characteristics", "premises_id", p.ID, p.Characteristics)
}

func (r pgRepo) SaveRoom(ctx context.Context, room *facility.Room) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO rooms (id, premises_id, code, name, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code, name = EXCLUDED.name, notes = EXCLUDED.notes, updated_at = now()
		RETURNING created_at, updated_at`,
		room.ID, room.PremisesID, room.Code, room.Name, room.Notes,
	).Scan(&room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: save room %s", room.Code)
	}
	return r.replaceLinks(ctx, "room_characteristics", "room_id", room.ID, room.Characteristics)
}

func (r pgRepo) SaveBed(ctx context.Context, b *facility.Bed) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO beds (id, room_id, code, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING created_at`,
		b.ID, b.RoomID, b.Code, b.Name,
	).Scan(&b.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: save bed %s", b.Code)
	}
	return nil
}

// linkTables whitelists the join tables interpolated into link queries.
var linkTables = map[string]string{
	"premises_characteristics": "premises_id",
	"room_characteristics":     "room_id",
}

func (r pgRepo) linkedCharacteristics(ctx context.Context, table, ownerCol string, ownerID uuid.UUID) (facility.Characteristics, error) {
	if linkTables[table] != ownerCol {
		return nil, eris.Errorf("postgres: unknown link table %s", table)
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+characteristicColumns+`
		FROM characteristics c
		JOIN `+table+` l ON l.characteristic_id = c.id
		WHERE l.`+ownerCol+` = $1
		ORDER BY c.property_name`, ownerID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load %s", table)
	}
	defer rows.Close()

	var cs []facility.Characteristic
	for rows.Next() {
		var c facility.Characteristic
		if err := rows.Scan(&c.ID, &c.PropertyName, &c.Name, &c.ServiceScope, &c.ModelScope); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: load %s iterate", table)
	}
	return facility.NewCharacteristics(cs...), nil
}

// replaceLinks clears and re-inserts the characteristic links of one owner.
func (r pgRepo) replaceLinks(ctx context.Context, table, ownerCol string, ownerID uuid.UUID, cs facility.Characteristics) error {
	if linkTables[table] != ownerCol {
		return eris.Errorf("postgres: unknown link table %s", table)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM `+table+` WHERE `+ownerCol+` = $1`, ownerID); err != nil {
		return eris.Wrapf(err, "postgres: clear %s", table)
	}
	rows := make([][]any, len(cs))
	for i, c := range cs {
		rows[i] = []any{ownerID, c.ID}
	}
	_, err := db.CopyFrom(ctx, r.q, table, []string{ownerCol, "characteristic_id"}, rows)
	return err
}

// encodePoint renders a geocode as EWKB with SRID 4326.
func encodePoint(g facility.Geocode) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{g.Longitude, g.Latitude}).SetSRID(4326)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode point")
	}
	return data, nil
}
