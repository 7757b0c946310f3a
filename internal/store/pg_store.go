package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/resqlabs/resq/internal/models"
)

// PGStore persists entities in Postgres. Responder lists and audit
// notes are stored as JSONB; coordinates are flattened to lng/lat
// columns so the nearby query can run haversine in SQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func marshalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}

const triageColumns = `
	id, request_id, category, user_id, user_name,
	lng, lat, address, sector, distance_km,
	need, affected_count, status, score, priority,
	assigned_to, estimated_response_minutes, actual_response_minutes,
	notes, updates, created_at, updated_at
`

func scanTriage(row rowScanner) (models.TriageRequest, error) {
	var (
		t        models.TriageRequest
		lng, lat sql.NullFloat64
		actual   sql.NullInt64
		assigned []byte
		updates  []byte
	)
	if err := row.Scan(
		&t.ID, &t.RequestID, &t.Category, &t.UserID, &t.UserName,
		&lng, &lat, &t.Location.Address, &t.Location.Sector, &t.Location.DistanceKm,
		&t.Need, &t.AffectedCount, &t.Status, &t.Score, &t.Priority,
		&assigned, &t.EstimatedResponseTime, &actual,
		&t.Notes, &updates, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return models.TriageRequest{}, err
	}
	if lng.Valid && lat.Valid {
		t.Location.Coordinates = []float64{lng.Float64, lat.Float64}
	}
	if actual.Valid {
		v := int(actual.Int64)
		t.ActualResponseTime = &v
	}
	if err := json.Unmarshal(assigned, &t.AssignedTo); err != nil {
		return models.TriageRequest{}, fmt.Errorf("decode assigned_to: %w", err)
	}
	if err := json.Unmarshal(updates, &t.Updates); err != nil {
		return models.TriageRequest{}, fmt.Errorf("decode updates: %w", err)
	}
	return t, nil
}

func triageCoords(t models.TriageRequest) (lng, lat sql.NullFloat64) {
	if len(t.Location.Coordinates) == 2 {
		lng = sql.NullFloat64{Float64: t.Location.Coordinates[0], Valid: true}
		lat = sql.NullFloat64{Float64: t.Location.Coordinates[1], Valid: true}
	}
	return lng, lat
}

func (s *PGStore) CreateTriage(ctx context.Context, t models.TriageRequest) error {
	assigned, err := marshalJSON(t.AssignedTo)
	if err != nil {
		return err
	}
	updates, err := marshalJSON(t.Updates)
	if err != nil {
		return err
	}
	lng, lat := triageCoords(t)
	var actual sql.NullInt64
	if t.ActualResponseTime != nil {
		actual = sql.NullInt64{Int64: int64(*t.ActualResponseTime), Valid: true}
	}
	const query = `
		INSERT INTO triage_requests (
			id, request_id, category, user_id, user_name,
			lng, lat, address, sector, distance_km,
			need, affected_count, status, score, priority,
			assigned_to, estimated_response_minutes, actual_response_minutes,
			notes, updates, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`
	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.RequestID, t.Category, t.UserID, t.UserName,
		lng, lat, t.Location.Address, t.Location.Sector, t.Location.DistanceKm,
		t.Need, t.AffectedCount, t.Status, t.Score, t.Priority,
		assigned, t.EstimatedResponseTime, actual,
		t.Notes, updates, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert triage request: %w", err)
	}
	return nil
}

func (s *PGStore) GetTriage(ctx context.Context, id uuid.UUID) (models.TriageRequest, error) {
	query := `SELECT ` + triageColumns + ` FROM triage_requests WHERE id = $1`
	t, err := scanTriage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TriageRequest{}, ErrNotFound
		}
		return models.TriageRequest{}, fmt.Errorf("get triage request: %w", err)
	}
	return t, nil
}

func (s *PGStore) UpdateTriage(ctx context.Context, t models.TriageRequest, expect models.TriageStatus) (models.TriageRequest, error) {
	assigned, err := marshalJSON(t.AssignedTo)
	if err != nil {
		return models.TriageRequest{}, err
	}
	updates, err := marshalJSON(t.Updates)
	if err != nil {
		return models.TriageRequest{}, err
	}
	var actual sql.NullInt64
	if t.ActualResponseTime != nil {
		actual = sql.NullInt64{Int64: int64(*t.ActualResponseTime), Valid: true}
	}
	query := `
		UPDATE triage_requests SET
			status = $3,
			assigned_to = $4,
			actual_response_minutes = $5,
			notes = $6,
			updates = $7,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + triageColumns
	updated, err := scanTriage(s.db.QueryRowContext(ctx, query,
		t.ID, expect, t.Status, assigned, actual, t.Notes, updates,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TriageRequest{}, s.triageMissOrConflict(ctx, t.ID)
		}
		return models.TriageRequest{}, fmt.Errorf("update triage request: %w", err)
	}
	return updated, nil
}

// triageMissOrConflict distinguishes "gone" from "someone got there
// first" after a conditional update matched no rows.
func (s *PGStore) triageMissOrConflict(ctx context.Context, id uuid.UUID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM triage_requests WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check triage existence: %w", err)
	}
	return ErrConflict
}

func (s *PGStore) ListTriage(ctx context.Context, f TriageFilter) ([]models.TriageRequest, error) {
	query := `SELECT ` + triageColumns + ` FROM triage_requests WHERE 1=1`
	args := []interface{}{}
	argPos := 1
	add := func(clause string, v interface{}) {
		query += fmt.Sprintf(clause, argPos)
		args = append(args, v)
		argPos++
	}
	if f.Status != "" {
		add(" AND status = $%d", f.Status)
	}
	if f.Category != "" {
		add(" AND category = $%d", f.Category)
	}
	if f.MinScore > 0 {
		add(" AND score >= $%d", f.MinScore)
	}
	if f.UserID != "" {
		add(" AND user_id = $%d", f.UserID)
	}
	if f.AssignedUserID != "" {
		add(" AND assigned_to @> $%d", fmt.Sprintf(`[{"userId":%q}]`, f.AssignedUserID))
	}
	if f.ActiveOnly {
		query += " AND status NOT IN ('COMPLETED','CANCELLED')"
	}
	if !f.CreatedSince.IsZero() {
		add(" AND created_at >= $%d", f.CreatedSince)
	}
	query += " ORDER BY score DESC, created_at DESC"
	if f.Limit > 0 {
		add(" LIMIT $%d", f.Limit)
	}
	if f.Offset > 0 {
		add(" OFFSET $%d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list triage requests: %w", err)
	}
	defer rows.Close()

	var out []models.TriageRequest
	for rows.Next() {
		t, err := scanTriage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan triage request: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triage requests: %w", err)
	}
	return out, nil
}

const sosColumns = `
	id, user_id, user_name,
	lng, lat, address, sector,
	status, severity, description, responders_nearby,
	acknowledged_by, resolved_by, broadcast_radius_km,
	created_at, updated_at
`

func scanSOS(row rowScanner, extra ...interface{}) (models.SOSSignal, error) {
	var (
		sig      models.SOSSignal
		lng, lat sql.NullFloat64
		acked    []byte
		resolved []byte
	)
	dest := []interface{}{
		&sig.ID, &sig.UserID, &sig.UserName,
		&lng, &lat, &sig.Location.Address, &sig.Location.Sector,
		&sig.Status, &sig.Severity, &sig.Description, &sig.RespondersNearby,
		&acked, &resolved, &sig.BroadcastRadiusKm,
		&sig.CreatedAt, &sig.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.SOSSignal{}, err
	}
	if lng.Valid && lat.Valid {
		sig.Location.Coordinates = []float64{lng.Float64, lat.Float64}
	}
	if err := json.Unmarshal(acked, &sig.AcknowledgedBy); err != nil {
		return models.SOSSignal{}, fmt.Errorf("decode acknowledged_by: %w", err)
	}
	if len(resolved) > 0 && string(resolved) != "null" {
		var r models.Resolution
		if err := json.Unmarshal(resolved, &r); err != nil {
			return models.SOSSignal{}, fmt.Errorf("decode resolved_by: %w", err)
		}
		sig.ResolvedBy = &r
	}
	return sig, nil
}

func (s *PGStore) CreateSOS(ctx context.Context, sig models.SOSSignal) error {
	acked, err := marshalJSON(sig.AcknowledgedBy)
	if err != nil {
		return err
	}
	resolved, err := marshalJSON(sig.ResolvedBy)
	if err != nil {
		return err
	}
	var lng, lat sql.NullFloat64
	if len(sig.Location.Coordinates) == 2 {
		lng = sql.NullFloat64{Float64: sig.Location.Coordinates[0], Valid: true}
		lat = sql.NullFloat64{Float64: sig.Location.Coordinates[1], Valid: true}
	}
	const query = `
		INSERT INTO sos_signals (
			id, user_id, user_name,
			lng, lat, address, sector,
			status, severity, description, responders_nearby,
			acknowledged_by, resolved_by, broadcast_radius_km,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`
	_, err = s.db.ExecContext(ctx, query,
		sig.ID, sig.UserID, sig.UserName,
		lng, lat, sig.Location.Address, sig.Location.Sector,
		sig.Status, sig.Severity, sig.Description, sig.RespondersNearby,
		acked, resolved, sig.BroadcastRadiusKm,
		sig.CreatedAt, sig.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sos signal: %w", err)
	}
	return nil
}

func (s *PGStore) GetSOS(ctx context.Context, id uuid.UUID) (models.SOSSignal, error) {
	query := `SELECT ` + sosColumns + ` FROM sos_signals WHERE id = $1`
	sig, err := scanSOS(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SOSSignal{}, ErrNotFound
		}
		return models.SOSSignal{}, fmt.Errorf("get sos signal: %w", err)
	}
	return sig, nil
}

func (s *PGStore) UpdateSOS(ctx context.Context, sig models.SOSSignal, expect models.SOSStatus) (models.SOSSignal, error) {
	acked, err := marshalJSON(sig.AcknowledgedBy)
	if err != nil {
		return models.SOSSignal{}, err
	}
	resolved, err := marshalJSON(sig.ResolvedBy)
	if err != nil {
		return models.SOSSignal{}, err
	}
	query := `
		UPDATE sos_signals SET
			status = $3,
			responders_nearby = $4,
			acknowledged_by = $5,
			resolved_by = $6,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sosColumns
	updated, err := scanSOS(s.db.QueryRowContext(ctx, query,
		sig.ID, expect, sig.Status, sig.RespondersNearby, acked, resolved,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SOSSignal{}, s.sosMissOrConflict(ctx, sig.ID)
		}
		return models.SOSSignal{}, fmt.Errorf("update sos signal: %w", err)
	}
	return updated, nil
}

func (s *PGStore) sosMissOrConflict(ctx context.Context, id uuid.UUID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sos_signals WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check sos existence: %w", err)
	}
	return ErrConflict
}

func (s *PGStore) ListSOS(ctx context.Context, f SOSFilter) ([]models.SOSSignal, error) {
	query := `SELECT ` + sosColumns + ` FROM sos_signals WHERE 1=1`
	args := []interface{}{}
	argPos := 1
	add := func(clause string, v interface{}) {
		query += fmt.Sprintf(clause, argPos)
		args = append(args, v)
		argPos++
	}
	if f.Status != "" {
		add(" AND status = $%d", f.Status)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		add(" AND status = ANY(string_to_array($%d, ','))", strings.Join(statuses, ","))
	}
	if f.Severity != "" {
		add(" AND severity = $%d", f.Severity)
	}
	if f.Sector != "" {
		add(" AND sector = $%d", f.Sector)
	}
	if !f.CreatedSince.IsZero() {
		add(" AND created_at >= $%d", f.CreatedSince)
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		add(" LIMIT $%d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sos signals: %w", err)
	}
	defer rows.Close()

	var out []models.SOSSignal
	for rows.Next() {
		sig, err := scanSOS(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sos signal: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sos signals: %w", err)
	}
	return out, nil
}

// NearbySOS computes haversine distance in SQL and filters/orders on
// it, mirroring what a document store's $geoNear stage would do.
func (s *PGStore) NearbySOS(ctx context.Context, lng, lat, maxMeters float64, limit int, statuses []models.SOSStatus) ([]NearbySOS, error) {
	query := `
		SELECT ` + sosColumns + `, distance FROM (
			SELECT *, 6371000 * 2 * asin(sqrt(
				power(sin(radians(lat - $2) / 2), 2) +
				cos(radians($2)) * cos(radians(lat)) *
				power(sin(radians(lng - $1) / 2), 2)
			)) AS distance
			FROM sos_signals
			WHERE lng IS NOT NULL AND lat IS NOT NULL
		) nearby
		WHERE distance <= $3
	`
	args := []interface{}{lng, lat, maxMeters}
	argPos := 4
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, st := range statuses {
			parts[i] = string(st)
		}
		query += fmt.Sprintf(" AND status = ANY(string_to_array($%d, ','))", argPos)
		args = append(args, strings.Join(parts, ","))
		argPos++
	}
	query += " ORDER BY distance ASC, created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearby sos query: %w", err)
	}
	defer rows.Close()

	var out []NearbySOS
	for rows.Next() {
		var distance float64
		sig, err := scanSOS(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("scan nearby sos: %w", err)
		}
		out = append(out, NearbySOS{SOSSignal: sig, DistanceMeters: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearby sos: %w", err)
	}
	return out, nil
}

const incidentColumns = `
	id, report_id, user_id, user_name, type,
	lng, lat, address, sector,
	description, severity, status, affected_count,
	responders, updates, created_at, updated_at
`

func scanIncident(row rowScanner) (models.IncidentReport, error) {
	var (
		inc        models.IncidentReport
		lng, lat   sql.NullFloat64
		responders []byte
		updates    []byte
	)
	if err := row.Scan(
		&inc.ID, &inc.ReportID, &inc.UserID, &inc.UserName, &inc.Type,
		&lng, &lat, &inc.Location.Address, &inc.Location.Sector,
		&inc.Description, &inc.Severity, &inc.Status, &inc.AffectedCount,
		&responders, &updates, &inc.CreatedAt, &inc.UpdatedAt,
	); err != nil {
		return models.IncidentReport{}, err
	}
	if lng.Valid && lat.Valid {
		inc.Location.Coordinates = []float64{lng.Float64, lat.Float64}
	}
	if err := json.Unmarshal(responders, &inc.Responders); err != nil {
		return models.IncidentReport{}, fmt.Errorf("decode responders: %w", err)
	}
	if err := json.Unmarshal(updates, &inc.Updates); err != nil {
		return models.IncidentReport{}, fmt.Errorf("decode updates: %w", err)
	}
	return inc, nil
}

func (s *PGStore) CreateIncident(ctx context.Context, inc models.IncidentReport) error {
	responders, err := marshalJSON(inc.Responders)
	if err != nil {
		return err
	}
	updates, err := marshalJSON(inc.Updates)
	if err != nil {
		return err
	}
	var lng, lat sql.NullFloat64
	if len(inc.Location.Coordinates) == 2 {
		lng = sql.NullFloat64{Float64: inc.Location.Coordinates[0], Valid: true}
		lat = sql.NullFloat64{Float64: inc.Location.Coordinates[1], Valid: true}
	}
	const query = `
		INSERT INTO incident_reports (
			id, report_id, user_id, user_name, type,
			lng, lat, address, sector,
			description, severity, status, affected_count,
			responders, updates, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`
	_, err = s.db.ExecContext(ctx, query,
		inc.ID, inc.ReportID, inc.UserID, inc.UserName, inc.Type,
		lng, lat, inc.Location.Address, inc.Location.Sector,
		inc.Description, inc.Severity, inc.Status, inc.AffectedCount,
		responders, updates, inc.CreatedAt, inc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident report: %w", err)
	}
	return nil
}

func (s *PGStore) GetIncident(ctx context.Context, id uuid.UUID) (models.IncidentReport, error) {
	query := `SELECT ` + incidentColumns + ` FROM incident_reports WHERE id = $1`
	inc, err := scanIncident(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.IncidentReport{}, ErrNotFound
		}
		return models.IncidentReport{}, fmt.Errorf("get incident report: %w", err)
	}
	return inc, nil
}

func (s *PGStore) UpdateIncident(ctx context.Context, inc models.IncidentReport, expect models.IncidentStatus) (models.IncidentReport, error) {
	responders, err := marshalJSON(inc.Responders)
	if err != nil {
		return models.IncidentReport{}, err
	}
	updates, err := marshalJSON(inc.Updates)
	if err != nil {
		return models.IncidentReport{}, err
	}
	query := `
		UPDATE incident_reports SET
			status = $3,
			responders = $4,
			updates = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + incidentColumns
	updated, err := scanIncident(s.db.QueryRowContext(ctx, query,
		inc.ID, expect, inc.Status, responders, updates,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.IncidentReport{}, s.incidentMissOrConflict(ctx, inc.ID)
		}
		return models.IncidentReport{}, fmt.Errorf("update incident report: %w", err)
	}
	return updated, nil
}

func (s *PGStore) incidentMissOrConflict(ctx context.Context, id uuid.UUID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM incident_reports WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check incident existence: %w", err)
	}
	return ErrConflict
}

func (s *PGStore) ListIncidents(ctx context.Context, f IncidentFilter) ([]models.IncidentReport, error) {
	query := `SELECT ` + incidentColumns + ` FROM incident_reports WHERE 1=1`
	args := []interface{}{}
	argPos := 1
	add := func(clause string, v interface{}) {
		query += fmt.Sprintf(clause, argPos)
		args = append(args, v)
		argPos++
	}
	if f.Status != "" {
		add(" AND status = $%d", f.Status)
	}
	if len(f.Statuses) > 0 {
		parts := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			parts[i] = string(st)
		}
		add(" AND status = ANY(string_to_array($%d, ','))", strings.Join(parts, ","))
	}
	if f.Severity != "" {
		add(" AND severity = $%d", f.Severity)
	}
	if f.Sector != "" {
		add(" AND sector = $%d", f.Sector)
	}
	if !f.CreatedSince.IsZero() {
		add(" AND created_at >= $%d", f.CreatedSince)
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		add(" LIMIT $%d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incident reports: %w", err)
	}
	defer rows.Close()

	var out []models.IncidentReport
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident report: %w", err)
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident reports: %w", err)
	}
	return out, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// Schema returns the DDL the store expects. Applied by ops tooling, not
// at runtime.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS triage_requests (
	id UUID PRIMARY KEY,
	request_id TEXT UNIQUE NOT NULL,
	category TEXT NOT NULL,
	user_id TEXT NOT NULL,
	user_name TEXT NOT NULL DEFAULT '',
	lng DOUBLE PRECISION,
	lat DOUBLE PRECISION,
	address TEXT NOT NULL DEFAULT '',
	sector TEXT NOT NULL DEFAULT '',
	distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	need TEXT NOT NULL,
	affected_count INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL,
	score INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 4),
	assigned_to JSONB NOT NULL DEFAULT '[]',
	estimated_response_minutes INTEGER NOT NULL DEFAULT 0,
	actual_response_minutes INTEGER,
	notes TEXT NOT NULL DEFAULT '',
	updates JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_triage_queue ON triage_requests (score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_triage_status ON triage_requests (status, score DESC);

CREATE TABLE IF NOT EXISTS sos_signals (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	user_name TEXT NOT NULL DEFAULT '',
	lng DOUBLE PRECISION,
	lat DOUBLE PRECISION,
	address TEXT NOT NULL DEFAULT '',
	sector TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	severity TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	responders_nearby INTEGER NOT NULL DEFAULT 0,
	acknowledged_by JSONB NOT NULL DEFAULT '[]',
	resolved_by JSONB,
	broadcast_radius_km DOUBLE PRECISION NOT NULL DEFAULT 5,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sos_status ON sos_signals (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sos_position ON sos_signals (lat, lng);

CREATE TABLE IF NOT EXISTS incident_reports (
	id UUID PRIMARY KEY,
	report_id TEXT UNIQUE NOT NULL,
	user_id TEXT NOT NULL,
	user_name TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	lng DOUBLE PRECISION,
	lat DOUBLE PRECISION,
	address TEXT NOT NULL DEFAULT '',
	sector TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	affected_count INTEGER NOT NULL DEFAULT 0,
	responders JSONB NOT NULL DEFAULT '[]',
	updates JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_incident_status ON incident_reports (status, severity, created_at DESC);
`
}
