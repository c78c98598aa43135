package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
)

// SQLiteStore implements facility.Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqliteRepo
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool is capped at one connection so a transaction owns the database.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteRepo: sqliteRepo{q: db}, db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS probation_regions (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS local_authority_areas (
	id         TEXT PRIMARY KEY,
	identifier TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS characteristics (
	id            TEXT PRIMARY KEY,
	property_name TEXT NOT NULL,
	name          TEXT NOT NULL,
	service_scope TEXT NOT NULL,
	model_scope   TEXT NOT NULL,
	UNIQUE (property_name, service_scope, model_scope)
);

CREATE TABLE IF NOT EXISTS premises (
	id                      TEXT PRIMARY KEY,
	q_code                  TEXT NOT NULL UNIQUE,
	name                    TEXT NOT NULL,
	address_line1           TEXT NOT NULL,
	address_line2           TEXT,
	town                    TEXT NOT NULL,
	postcode                TEXT NOT NULL,
	latitude                REAL NOT NULL,
	longitude               REAL NOT NULL,
	gender                  TEXT NOT NULL,
	probation_region_id     TEXT NOT NULL REFERENCES probation_regions(id),
	local_authority_area_id TEXT NOT NULL REFERENCES local_authority_areas(id),
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS premises_characteristics (
	premises_id       TEXT NOT NULL REFERENCES premises(id),
	characteristic_id TEXT NOT NULL REFERENCES characteristics(id),
	PRIMARY KEY (premises_id, characteristic_id)
);

CREATE TABLE IF NOT EXISTS rooms (
	id          TEXT PRIMARY KEY,
	premises_id TEXT NOT NULL REFERENCES premises(id),
	code        TEXT NOT NULL,
	name        TEXT NOT NULL,
	notes       TEXT,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	UNIQUE (premises_id, code)
);

CREATE TABLE IF NOT EXISTS room_characteristics (
	room_id           TEXT NOT NULL REFERENCES rooms(id),
	characteristic_id TEXT NOT NULL REFERENCES characteristics(id),
	PRIMARY KEY (room_id, characteristic_id)
);

CREATE TABLE IF NOT EXISTS beds (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	code       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS bookings (
	id         TEXT PRIMARY KEY,
	bed_id     TEXT NOT NULL REFERENCES beds(id),
	crn        TEXT NOT NULL,
	arrival_on DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rooms_premises_id ON rooms(premises_id);
CREATE INDEX IF NOT EXISTS idx_beds_room_id ON beds(room_id);
CREATE INDEX IF NOT EXISTS idx_bookings_bed_id ON bookings(bed_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn in a transaction. fn must only use the tx it is given.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(ctx context.Context, tx facility.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, &sqliteTx{sqliteRepo{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}

// SaveProbationRegion inserts or renames a probation region.
func (s *SQLiteStore) SaveProbationRegion(ctx context.Context, pr *facility.ProbationRegion) error {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO probation_regions (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		pr.ID.String(), pr.Name)
	return eris.Wrapf(err, "sqlite: save probation region %s", pr.Name)
}

// SaveLocalAuthorityArea inserts or renames a local authority area.
func (s *SQLiteStore) SaveLocalAuthorityArea(ctx context.Context, la *facility.LocalAuthorityArea) error {
	if la.ID == uuid.Nil {
		la.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_authority_areas (id, identifier, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET identifier = excluded.identifier, name = excluded.name`,
		la.ID.String(), la.Identifier, la.Name)
	return eris.Wrapf(err, "sqlite: save local authority area %s", la.Name)
}

// CreateBooking reserves a bed.
func (s *SQLiteStore) CreateBooking(ctx context.Context, b *facility.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, bed_id, crn, arrival_on) VALUES (?, ?, ?, ?)`,
		b.ID.String(), b.BedID.String(), b.CRN, b.ArrivalOn.UTC())
	return eris.Wrapf(err, "sqlite: create booking %s", b.CRN)
}

// ListBookingsByBed returns the bookings of one bed.
func (s *SQLiteStore) ListBookingsByBed(ctx context.Context, bedID uuid.UUID) ([]facility.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bed_id, crn, arrival_on FROM bookings WHERE bed_id = ? ORDER BY arrival_on`, bedID.String())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list bookings")
	}
	defer rows.Close() //nolint:errcheck

	var out []facility.Booking
	for rows.Next() {
		var b facility.Booking
		if err := rows.Scan(&b.ID, &b.BedID, &b.CRN, &b.ArrivalOn); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan booking")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list bookings iterate")
}

func (s *SQLiteStore) UpsertCharacteristics(ctx context.Context, cs []facility.Characteristic) (int64, error) {
	var n int64
	err := s.InTx(ctx, func(ctx context.Context, tx facility.Tx) error {
		var err error
		n, err = tx.UpsertCharacteristics(ctx, cs)
		return err
	})
	return n, err
}

type sqliteTx struct {
	sqliteRepo
}

// LockFacility is a no-op: the single connection already serializes writers.
func (t *sqliteTx) LockFacility(context.Context, string) error { return nil }

func (t *sqliteTx) UpsertCharacteristics(ctx context.Context, cs []facility.Characteristic) (int64, error) {
	var n int64
	for _, c := range cs {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		res, err := t.q.ExecContext(ctx, `
			INSERT INTO characteristics (id, property_name, name, service_scope, model_scope)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (property_name, service_scope, model_scope) DO UPDATE SET name = excluded.name`,
			id.String(), c.PropertyName, c.Name, c.ServiceScope, c.ModelScope)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert characteristic %s", c.PropertyName)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	return n, nil
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteRepo struct {
	q sqlQuerier
}

func (r sqliteRepo) FindCharacteristic(ctx context.Context, propertyName, serviceScope, modelScope string) (*facility.Characteristic, error) {
	var c facility.Characteristic
	err := r.q.QueryRowContext(ctx, `
		SELECT `+characteristicColumns+`
		FROM characteristics c
		WHERE c.property_name = ? AND c.service_scope = ? AND c.model_scope = ?`,
		propertyName, serviceScope, modelScope,
	).Scan(&c.ID, &c.PropertyName, &c.Name, &c.ServiceScope, &c.ModelScope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find characteristic %s", propertyName)
	}
	return &c, nil
}

func (r sqliteRepo) FindProbationRegionByName(ctx context.Context, name string) (*facility.ProbationRegion, error) {
	var pr facility.ProbationRegion
	err := r.q.QueryRowContext(ctx, `SELECT id, name FROM probation_regions WHERE lower(name) = lower(?)`, strings.TrimSpace(name)).
		Scan(&pr.ID, &pr.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find probation region %s", name)
	}
	return &pr, nil
}

func (r sqliteRepo) FindLocalAuthorityAreaByName(ctx context.Context, name string) (*facility.LocalAuthorityArea, error) {
	var la facility.LocalAuthorityArea
	err := r.q.QueryRowContext(ctx, `SELECT id, identifier, name FROM local_authority_areas WHERE lower(name) = lower(?)`, strings.TrimSpace(name)).
		Scan(&la.ID, &la.Identifier, &la.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find local authority area %s", name)
	}
	return &la, nil
}

func (r sqliteRepo) FindPremisesByQCode(ctx context.Context, qCode string) (*facility.Premises, error) {
	var p facility.Premises
	var gender string
	var addr2 sql.NullString
	err := r.q.QueryRowContext(ctx, `SELECT `+premisesColumns+` FROM premises WHERE q_code = ?`, qCode).Scan(
		&p.ID, &p.QCode, &p.Name, &p.AddressLine1, &addr2, &p.Town, &p.Postcode,
		&p.Geocode.Latitude, &p.Geocode.Longitude,
		&gender, &p.ProbationRegionID, &p.LocalAuthorityAreaID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find premises %s", qCode)
	}
	p.Gender = facility.Gender(gender)
	p.AddressLine2 = nullString(addr2)

	p.Characteristics, err = r.linkedCharacteristics(ctx, "premises_characteristics", "premises_id", p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r sqliteRepo) FindRoomByCode(ctx context.Context, premisesID uuid.UUID, code string) (*facility.Room, error) {
	var room facility.Room
	var notes sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT id, premises_id, code, name, notes, created_at, updated_at
		FROM rooms WHERE premises_id = ? AND code = ?`, premisesID.String(), code).
		Scan(&room.ID, &room.PremisesID, &room.Code, &room.Name, &notes, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find room %s", code)
	}
	room.Notes = nullString(notes)

	room.Characteristics, err = r.linkedCharacteristics(ctx, "room_characteristics", "room_id", room.ID)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r sqliteRepo) FindRoomByID(ctx context.Context, id uuid.UUID) (*facility.Room, error) {
	var room facility.Room
	var notes sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT id, premises_id, code, name, notes, created_at, updated_at
		FROM rooms WHERE id = ?`, id.String()).
		Scan(&room.ID, &room.PremisesID, &room.Code, &room.Name, &notes, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find room %s", id)
	}
	room.Notes = nullString(notes)

	room.Characteristics, err = r.linkedCharacteristics(ctx, "room_characteristics", "room_id", room.ID)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r sqliteRepo) FindBedByCode(ctx context.Context, code string) (*facility.Bed, error) {
	var b facility.Bed
	err := r.q.QueryRowContext(ctx, `SELECT id, room_id, code, name, created_at FROM beds WHERE code = ?`, code).
		Scan(&b.ID, &b.RoomID, &b.Code, &b.Name, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: find bed %s", code)
	}
	return &b, nil
}

func (r sqliteRepo) ListBedsByRoom(ctx context.Context, roomID uuid.UUID) ([]facility.Bed, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, room_id, code, name, created_at FROM beds WHERE room_id = ? ORDER BY code`, roomID.String())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list beds")
	}
	defer rows.Close() //nolint:errcheck

	var beds []facility.Bed
	for rows.Next() {
		var b facility.Bed
		if err := rows.Scan(&b.ID, &b.RoomID, &b.Code, &b.Name, &b.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bed")
		}
		beds = append(beds, b)
	}
	return beds, eris.Wrap(rows.Err(), "sqlite: list beds iterate")
}

func (r sqliteRepo) SavePremises(ctx context.Context, p *facility.Premises) error {
	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO premises (
			id, q_code, name, address_line1, address_line2, town, postcode,
			latitude, longitude, gender, probation_region_id, local_authority_area_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			q_code = excluded.q_code, name = excluded.name,
			address_line1 = excluded.address_line1, address_line2 = excluded.address_line2,
			town = excluded.town, postcode = excluded.postcode,
			latitude = excluded.latitude, longitude = excluded.longitude,
			gender = excluded.gender, probation_region_id = excluded.probation_region_id,
			local_authority_area_id = excluded.local_authority_area_id,
			updated_at = excluded.updated_at`,
		p.ID.String(), p.QCode, p.Name, p.AddressLine1, p.AddressLine2, p.Town, p.Postcode,
		p.Geocode.Latitude, p.Geocode.Longitude, string(p.Gender),
		p.ProbationRegionID.String(), p.LocalAuthorityAreaID.String(), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save premises %s", p.QCode)
	}
	return r.replaceLinks(ctx, "premises_characteristics", "premises_id", p.ID, p.Characteristics)
}

func (r sqliteRepo) SaveRoom(ctx context.Context, room *facility.Room) error {
	now := time.Now().UTC()
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO rooms (id, premises_id, code, name, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			code = excluded.code, name = excluded.name, notes = excluded.notes,
			updated_at = excluded.updated_at`,
		room.ID.String(), room.PremisesID.String(), room.Code, room.Name, room.Notes,
		room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save room %s", room.Code)
	}
	return r.replaceLinks(ctx, "room_characteristics", "room_id", room.ID, room.Characteristics)
}

func (r sqliteRepo) SaveBed(ctx context.Context, b *facility.Bed) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO beds (id, room_id, code, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		b.ID.String(), b.RoomID.String(), b.Code, b.Name, b.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save bed %s", b.Code)
}

func (r sqliteRepo) linkedCharacteristics(ctx context.Context, table, ownerCol string, ownerID uuid.UUID) (facility.Characteristics, error) {
	if linkTables[table] != ownerCol {
		return nil, eris.Errorf("sqlite: unknown link table %s", table)
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+characteristicColumns+`
		FROM characteristics c
		JOIN `+table+` l ON l.characteristic_id = c.id
		WHERE l.`+ownerCol+` = ?
		ORDER BY c.property_name`, ownerID.String())
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load %s", table)
	}
	defer rows.Close() //nolint:errcheck

	var cs []facility.Characteristic
	for rows.Next() {
		var c facility.Characteristic
		if err := rows.Scan(&c.ID, &c.PropertyName, &c.Name, &c.ServiceScope, &c.ModelScope); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: load %s iterate", table)
	}
	return facility.NewCharacteristics(cs...), nil
}

func (r sqliteRepo) replaceLinks(ctx context.Context, table, ownerCol string, ownerID uuid.UUID, cs facility.Characteristics) error {
	if linkTables[table] != ownerCol {
		return eris.Errorf("sqlite: unknown link table %s", table)
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+ownerCol+` = ?`, ownerID.String()); err != nil {
		return eris.Wrapf(err, "sqlite: clear %s", table)
	}
	for _, c := range cs {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO `+table+` (`+ownerCol+`, characteristic_id) VALUES (?, ?)`,
			ownerID.String(), c.ID.String()); err != nil {
			return eris.Wrapf(err, "sqlite: link %s", c.PropertyName)
		}
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
