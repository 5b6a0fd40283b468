package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a rip session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusDegraded  SessionStatus = "degraded"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// Session is one invocation of the ripper against one disc.
type Session struct {
	ID          string
	Fingerprint string
	Device      string
	Image       bool
	Status      SessionStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	TrackCount  int
}

// TrackRecord is the stored outcome of one track.
type TrackRecord struct {
	SessionID   string
	Track       int
	Outcome     string
	Trials      int
	MD5         string
	CRC32       uint32
	HasCRC      bool
	TrialCRCs   []uint32
	PeakPercent float64
	Corrected   int
	Unresolved  []int64
	Elapsed     time.Duration
	Error       string
	CreatedAt   time.Time
}

// Mismatch is one stored mismatch report.
type Mismatch struct {
	SessionID     string
	Track         int
	Trial         int
	Final         bool
	Sectors       []int64
	ExpectedBytes int64
	LengthSectors int64
	CreatedAt     time.Time
}

// BeginSession records the start of a rip and returns its generated ID.
func (s *Store) BeginSession(ctx context.Context, fingerprint, device string, image bool) (Session, error) {
	session := Session{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Device:      device,
		Image:       image,
		Status:      StatusRunning,
		StartedAt:   s.now().UTC(),
	}
	_, err := s.exec(ctx,
		"INSERT INTO sessions (id, fingerprint, device, image, status, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		session.ID, fingerprint, device, boolToInt(image), string(StatusRunning), session.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// FinishSession stores the final status of a session.
func (s *Store) FinishSession(ctx context.Context, id string, status SessionStatus) error {
	res, err := s.exec(ctx,
		"UPDATE sessions SET status = ?, finished_at = ? WHERE id = ?",
		string(status), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// RecordTrack stores a track outcome.
func (s *Store) RecordTrack(ctx context.Context, rec TrackRecord) error {
	var crc any
	if rec.HasCRC {
		crc = int64(rec.CRC32)
	}
	_, err := s.exec(ctx,
		`INSERT INTO tracks (session_id, track, outcome, trials, md5, crc32, trial_crcs, peak_percent,
			corrected, unresolved, elapsed_ms, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Track, rec.Outcome, rec.Trials, rec.MD5, crc, joinCRCs(rec.TrialCRCs), rec.PeakPercent,
		rec.Corrected, joinInts(rec.Unresolved), rec.Elapsed.Milliseconds(), rec.Error, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}
	return nil
}

// RecordMismatch stores a mismatch report.
func (s *Store) RecordMismatch(ctx context.Context, m Mismatch) error {
	_, err := s.exec(ctx,
		`INSERT INTO mismatches (session_id, track, trial, final, sectors, expected_bytes, length_sectors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID, m.Track, m.Trial, boolToInt(m.Final), joinInts(m.Sectors), m.ExpectedBytes, m.LengthSectors, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert mismatch: %w", err)
	}
	return nil
}

// PreviousCRC returns the payload CRC32 of the most recent finished rip of the
// same track on the same disc, excluding session excludeID.
func (s *Store) PreviousCRC(ctx context.Context, fingerprint string, track int, excludeID string) (uint32, bool, error) {
	var crc sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT t.crc32 FROM tracks t JOIN sessions s ON s.id = t.session_id
		WHERE s.fingerprint = ? AND t.track = ? AND t.session_id <> ? AND t.crc32 IS NOT NULL
		ORDER BY t.created_at DESC, t.id DESC LIMIT 1`,
		fingerprint, track, excludeID,
	).Scan(&crc)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query previous crc: %w", err)
	}
	if !crc.Valid {
		return 0, false, nil
	}
	return uint32(crc.Int64), true, nil
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, sessionQuery+" WHERE s.id = ? GROUP BY s.id", id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return session, err
}

// ListSessions returns the most recent sessions first. limit <= 0 means 20.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, sessionQuery+" GROUP BY s.id ORDER BY s.started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// Tracks returns the track outcomes of a session ordered by track number.
func (s *Store) Tracks(ctx context.Context, sessionID string) ([]TrackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, track, outcome, trials, md5, crc32, trial_crcs, peak_percent, corrected,
			unresolved, elapsed_ms, error_message, created_at
		FROM tracks WHERE session_id = ? ORDER BY track, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []TrackRecord
	for rows.Next() {
		var (
			rec        TrackRecord
			crc        sql.NullInt64
			trialCRCs  string
			unresolved string
			elapsedMS  int64
			createdRaw sql.NullString
		)
		if err := rows.Scan(&rec.SessionID, &rec.Track, &rec.Outcome, &rec.Trials, &rec.MD5, &crc, &trialCRCs,
			&rec.PeakPercent, &rec.Corrected, &unresolved, &elapsedMS, &rec.Error, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		rec.HasCRC = crc.Valid
		rec.CRC32 = uint32(crc.Int64)
		rec.TrialCRCs = splitCRCs(trialCRCs)
		rec.Unresolved = splitInts(unresolved)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.CreatedAt = parseTime(createdRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Mismatches returns the mismatch reports of a session in insertion order.
func (s *Store) Mismatches(ctx context.Context, sessionID string) ([]Mismatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, track, trial, final, sectors, expected_bytes, length_sectors, created_at
		FROM mismatches WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list mismatches: %w", err)
	}
	defer rows.Close()

	var out []Mismatch
	for rows.Next() {
		var (
			m          Mismatch
			final      int
			sectors    string
			createdRaw sql.NullString
		)
		if err := rows.Scan(&m.SessionID, &m.Track, &m.Trial, &final, &sectors, &m.ExpectedBytes, &m.LengthSectors, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan mismatch: %w", err)
		}
		m.Final = final != 0
		m.Sectors = splitInts(sectors)
		m.CreatedAt = parseTime(createdRaw)
		out = append(out, m)
	}
	return out, rows.Err()
}

const sessionQuery = `SELECT s.id, s.fingerprint, s.device, s.image, s.status, s.started_at, s.finished_at, COUNT(t.id)
	FROM sessions s LEFT JOIN tracks t ON t.session_id = s.id`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		session     Session
		image       int
		status      string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&session.ID, &session.Fingerprint, &session.Device, &image, &status,
		&startedRaw, &finishedRaw, &session.TrackCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.Image = image != 0
	session.Status = SessionStatus(status)
	session.StartedAt = parseTime(startedRaw)
	session.FinishedAt = parseTime(finishedRaw)
	return &session, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func joinInts(values []int64) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.FormatInt(v, 10))
	}
	return strings.Join(parts, ",")
}

func splitInts(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

func joinCRCs(values []uint32) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%08X", v))
	}
	return strings.Join(parts, ",")
}

func splitCRCs(raw string) []uint32 {
	if raw == "" {
		return nil
	}
	var out []uint32
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 16, 32)
		if err == nil {
			out = append(out, uint32(v))
		}
	}
	return out
}
