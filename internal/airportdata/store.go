package airportdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apronworks/apron-agent/internal/db"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("airportdata: not found")

// Store provides the structured airport data services.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// --- stands ---

const standColumns = `id, name, terminal, pier, status, latitude, longitude,
	size_code, contact_stand, has_fuel_pit, created_at, updated_at`

func scanStand(row interface{ Scan(...any) error }) (*Stand, error) {
	var s Stand
	var contact, fuel int
	err := row.Scan(&s.ID, &s.Name, &s.Terminal, &s.Pier, &s.Status,
		&s.Latitude, &s.Longitude, &s.SizeCode, &contact, &fuel,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning stand: %w", err)
	}
	s.ContactStand = contact != 0
	s.HasFuelPit = fuel != 0
	return &s, nil
}

// StandByName retrieves one stand.
func (s *Store) StandByName(ctx context.Context, name string) (*Stand, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+standColumns+` FROM stands WHERE name = ?`, name)
	return scanStand(row)
}

// StandsByTerminal lists the stands of a terminal, by name.
func (s *Store) StandsByTerminal(ctx context.Context, terminal string) ([]Stand, error) {
	return s.queryStands(ctx,
		`SELECT `+standColumns+` FROM stands WHERE terminal = ? ORDER BY name`, terminal)
}

// StandsByPier lists the stands of a pier, by name.
func (s *Store) StandsByPier(ctx context.Context, pier string) ([]Stand, error) {
	return s.queryStands(ctx,
		`SELECT `+standColumns+` FROM stands WHERE pier = ? ORDER BY name`, pier)
}

// AllStands lists every stand, by name.
func (s *Store) AllStands(ctx context.Context) ([]Stand, error) {
	return s.queryStands(ctx,
		`SELECT `+standColumns+` FROM stands ORDER BY name`)
}

func (s *Store) queryStands(ctx context.Context, query string, args ...any) ([]Stand, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stands: %w", err)
	}
	defer rows.Close()

	var stands []Stand
	for rows.Next() {
		st, err := scanStand(rows)
		if err != nil {
			return nil, err
		}
		stands = append(stands, *st)
	}
	return stands, rows.Err()
}

// CreateStand inserts a stand. A missing ID gets a UUID; a missing status
// defaults to available.
func (s *Store) CreateStand(ctx context.Context, st Stand) (*Stand, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.Status == "" {
		st.Status = StandAvailable
	}
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stands (id, name, terminal, pier, status, latitude,
			longitude, size_code, contact_stand, has_fuel_pit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Terminal, st.Pier, string(st.Status),
		st.Latitude, st.Longitude, st.SizeCode,
		boolInt(st.ContactStand), boolInt(st.HasFuelPit), st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting stand: %w", err)
	}
	return &st, nil
}

// UpdateStand replaces a stand's mutable fields, addressed by name.
func (s *Store) UpdateStand(ctx context.Context, st Stand) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stands SET terminal = ?, pier = ?, status = ?, latitude = ?,
			longitude = ?, size_code = ?, contact_stand = ?, has_fuel_pit = ?,
			updated_at = ?
		WHERE name = ?`,
		st.Terminal, st.Pier, string(st.Status), st.Latitude, st.Longitude,
		st.SizeCode, boolInt(st.ContactStand), boolInt(st.HasFuelPit),
		time.Now().UTC(), st.Name)
	if err != nil {
		return fmt.Errorf("updating stand: %w", err)
	}
	return requireRow(res)
}

// SetStandStatus updates only the status field.
func (s *Store) SetStandStatus(ctx context.Context, name string, status StandStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stands SET status = ?, updated_at = ? WHERE name = ?`,
		string(status), time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("updating stand status: %w", err)
	}
	return requireRow(res)
}

// DeleteStand removes a stand by name.
func (s *Store) DeleteStand(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stands WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting stand: %w", err)
	}
	return requireRow(res)
}

// --- terminals and piers ---

// TerminalByName retrieves one terminal.
func (s *Store) TerminalByName(ctx context.Context, name string) (*Terminal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, airport_code, description, created_at, updated_at
		FROM terminals WHERE name = ?`, name)

	var t Terminal
	err := row.Scan(&t.ID, &t.Name, &t.AirportCode, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning terminal: %w", err)
	}
	return &t, nil
}

// CreateTerminal inserts a terminal.
func (s *Store) CreateTerminal(ctx context.Context, t Terminal) (*Terminal, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO terminals (id, name, airport_code, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.AirportCode, t.Description, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting terminal: %w", err)
	}
	return &t, nil
}

// UpdateTerminal replaces a terminal's mutable fields, addressed by name.
func (s *Store) UpdateTerminal(ctx context.Context, t Terminal) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE terminals SET airport_code = ?, description = ?, updated_at = ?
		WHERE name = ?`,
		t.AirportCode, t.Description, time.Now().UTC(), t.Name)
	if err != nil {
		return fmt.Errorf("updating terminal: %w", err)
	}
	return requireRow(res)
}

// DeleteTerminal removes a terminal by name.
func (s *Store) DeleteTerminal(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM terminals WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting terminal: %w", err)
	}
	return requireRow(res)
}

// PierByName retrieves one pier.
func (s *Store) PierByName(ctx context.Context, name string) (*Pier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, terminal, description FROM piers WHERE name = ?`, name)

	var p Pier
	err := row.Scan(&p.ID, &p.Name, &p.Terminal, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning pier: %w", err)
	}
	return &p, nil
}

// --- reference data ---

// AirportByCode retrieves an airport by IATA code.
func (s *Store) AirportByCode(ctx context.Context, iata string) (*Airport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, iata_code, icao_code, name, city, country, latitude, longitude, timezone
		FROM airports WHERE iata_code = ?`, iata)

	var a Airport
	err := row.Scan(&a.ID, &a.IATACode, &a.ICAOCode, &a.Name, &a.City,
		&a.Country, &a.Latitude, &a.Longitude, &a.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning airport: %w", err)
	}
	return &a, nil
}

// AirlineByCode retrieves an airline by IATA code.
func (s *Store) AirlineByCode(ctx context.Context, iata string) (*Airline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, iata_code, icao_code, name, country, callsign
		FROM airlines WHERE iata_code = ?`, iata)

	var a Airline
	err := row.Scan(&a.ID, &a.IATACode, &a.ICAOCode, &a.Name, &a.Country, &a.Callsign)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning airline: %w", err)
	}
	return &a, nil
}

// AircraftTypeByCode retrieves an aircraft type by ICAO code.
func (s *Store) AircraftTypeByCode(ctx context.Context, icao string) (*AircraftType, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, icao_code, iata_code, name, size_code, wingspan_m, length_m
		FROM aircraft_types WHERE icao_code = ?`, icao)

	var a AircraftType
	err := row.Scan(&a.ID, &a.ICAOCode, &a.IATACode, &a.Name, &a.SizeCode,
		&a.WingspanM, &a.LengthM)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning aircraft type: %w", err)
	}
	return &a, nil
}

// --- maintenance ---

const maintenanceColumns = `id, stand_name, start_date, end_date, status,
	description, requested_by, created_at, updated_at`

func scanMaintenance(row interface{ Scan(...any) error }) (*MaintenanceRequest, error) {
	var m MaintenanceRequest
	err := row.Scan(&m.ID, &m.StandName, &m.StartDate, &m.EndDate, &m.Status,
		&m.Description, &m.RequestedBy, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning maintenance request: %w", err)
	}
	return &m, nil
}

// CreateMaintenance inserts a maintenance request.
func (s *Store) CreateMaintenance(ctx context.Context, m MaintenanceRequest) (*MaintenanceRequest, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MaintenanceScheduled
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_requests (id, stand_name, start_date, end_date,
			status, description, requested_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.StandName, m.StartDate.UTC(), m.EndDate.UTC(), string(m.Status),
		m.Description, m.RequestedBy, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting maintenance request: %w", err)
	}
	return &m, nil
}

// UpdateMaintenance replaces a request's mutable fields, addressed by id.
func (s *Store) UpdateMaintenance(ctx context.Context, m MaintenanceRequest) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_requests SET stand_name = ?, start_date = ?,
			end_date = ?, status = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		m.StandName, m.StartDate.UTC(), m.EndDate.UTC(), string(m.Status),
		m.Description, time.Now().UTC(), m.ID)
	if err != nil {
		return fmt.Errorf("updating maintenance request: %w", err)
	}
	return requireRow(res)
}

// DeleteMaintenance removes a request by id.
func (s *Store) DeleteMaintenance(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM maintenance_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting maintenance request: %w", err)
	}
	return requireRow(res)
}

// MaintenanceByStand lists requests for a stand, newest window first.
func (s *Store) MaintenanceByStand(ctx context.Context, standName string) ([]MaintenanceRequest, error) {
	return s.queryMaintenance(ctx, `
		SELECT `+maintenanceColumns+` FROM maintenance_requests
		WHERE stand_name = ? ORDER BY start_date DESC`, standName)
}

// AllMaintenance lists every maintenance request, newest window first.
func (s *Store) AllMaintenance(ctx context.Context) ([]MaintenanceRequest, error) {
	return s.queryMaintenance(ctx, `
		SELECT `+maintenanceColumns+` FROM maintenance_requests
		ORDER BY start_date DESC`)
}

// MaintenanceInWindow lists requests overlapping [from, to].
func (s *Store) MaintenanceInWindow(ctx context.Context, from, to time.Time) ([]MaintenanceRequest, error) {
	return s.queryMaintenance(ctx, `
		SELECT `+maintenanceColumns+` FROM maintenance_requests
		WHERE start_date <= ? AND end_date >= ? ORDER BY start_date`,
		to.UTC(), from.UTC())
}

func (s *Store) queryMaintenance(ctx context.Context, query string, args ...any) ([]MaintenanceRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying maintenance requests: %w", err)
	}
	defer rows.Close()

	var out []MaintenanceRequest
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// --- operational settings ---

// Setting retrieves one operational setting.
func (s *Store) Setting(ctx context.Context, key string) (*OperationalSetting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, value, description, updated_at
		FROM operational_settings WHERE key = ?`, key)

	var o OperationalSetting
	err := row.Scan(&o.Key, &o.Value, &o.Description, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning setting: %w", err)
	}
	return &o, nil
}

// Settings lists all operational settings, by key.
func (s *Store) Settings(ctx context.Context) ([]OperationalSetting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, description, updated_at
		FROM operational_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	var out []OperationalSetting
	for rows.Next() {
		var o OperationalSetting
		if err := rows.Scan(&o.Key, &o.Value, &o.Description, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetSetting inserts or updates an operational setting.
func (s *Store) SetSetting(ctx context.Context, o OperationalSetting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operational_settings (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			description = excluded.description, updated_at = excluded.updated_at`,
		o.Key, o.Value, o.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting setting: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
