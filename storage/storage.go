package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ding-server/gameerrors"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS rooms (
	code       TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	state      JSONB NOT NULL,
	version    BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS hands (
	room_code  TEXT NOT NULL,
	seat_key   TEXT NOT NULL,
	cards      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room_code, seat_key)
);
CREATE TABLE IF NOT EXISTS profiles (
	user_id        TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL DEFAULT '',
	push_tokens    JSONB NOT NULL DEFAULT '[]',
	push_enabled   BOOLEAN NOT NULL DEFAULT FALSE,
	last_turn_ack  TEXT NOT NULL DEFAULT '',
	last_room_code TEXT NOT NULL DEFAULT '',
	nicknames      JSONB NOT NULL DEFAULT '{}',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS room_log (
	id        UUID PRIMARY KEY,
	room_code TEXT NOT NULL,
	kind      TEXT NOT NULL,
	uid       TEXT NOT NULL DEFAULT '',
	name      TEXT NOT NULL DEFAULT '',
	body      TEXT NOT NULL,
	at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_room_log_room ON room_log(room_code, at DESC);
`

// Store persists room records, private hand records, user profiles and
// the room log in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the schema exists.
// If databaseURL is empty, NewStore returns (nil, nil) and the server
// runs in-memory only (rooms do not survive a restart).
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// SaveRoomState writes the room record with an optimistic version check.
// expectVersion 0 inserts a new record. On a version conflict the write is
// rejected with gameerrors.ErrStaleState and the caller must re-read.
// Returns the record's new version.
func (s *Store) SaveRoomState(ctx context.Context, code, name string, state []byte, expectVersion int64) (int64, error) {
	if s == nil || s.pool == nil {
		return expectVersion + 1, nil
	}
	if expectVersion == 0 {
		var v int64
		err := s.pool.QueryRow(ctx, `
			INSERT INTO rooms (code, name, state, version) VALUES ($1, $2, $3, 1)
			ON CONFLICT (code) DO NOTHING
			RETURNING version`,
			code, name, state).Scan(&v)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, gameerrors.ErrStaleState
		}
		return v, err
	}
	var v int64
	err := s.pool.QueryRow(ctx, `
		UPDATE rooms SET name = $2, state = $3, version = version + 1, updated_at = now()
		WHERE code = $1 AND version = $4
		RETURNING version`,
		code, name, state, expectVersion).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, gameerrors.ErrStaleState
	}
	return v, err
}

// LoadRoomState reads the room record and its version.
func (s *Store) LoadRoomState(ctx context.Context, code string) ([]byte, int64, error) {
	if s == nil || s.pool == nil {
		return nil, 0, gameerrors.ErrRoomNotFound
	}
	var state []byte
	var v int64
	err := s.pool.QueryRow(ctx, `SELECT state, version FROM rooms WHERE code = $1`, code).Scan(&state, &v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, gameerrors.ErrRoomNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return state, v, nil
}

// RoomVersion returns just the record's version, for cheap staleness polls.
func (s *Store) RoomVersion(ctx context.Context, code string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, gameerrors.ErrRoomNotFound
	}
	var v int64
	err := s.pool.QueryRow(ctx, `SELECT version FROM rooms WHERE code = $1`, code).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, gameerrors.ErrRoomNotFound
	}
	return v, err
}

// DeleteRoom removes the room record and all its hand records. The room
// log is kept for the history API.
func (s *Store) DeleteRoom(ctx context.Context, code string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM hands WHERE room_code = $1`, code); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	return err
}

// SaveHand upserts one seat's private hand record.
func (s *Store) SaveHand(ctx context.Context, code, seatKey string, cards []byte) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hands (room_code, seat_key, cards) VALUES ($1, $2, $3)
		ON CONFLICT (room_code, seat_key) DO UPDATE SET cards = $3, updated_at = now()`,
		code, seatKey, cards)
	return err
}

// LoadHand reads one seat's private hand record; (nil, nil) when absent.
func (s *Store) LoadHand(ctx context.Context, code, seatKey string) ([]byte, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	var cards []byte
	err := s.pool.QueryRow(ctx, `SELECT cards FROM hands WHERE room_code = $1 AND seat_key = $2`, code, seatKey).Scan(&cards)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cards, err
}

// DeleteHand removes one seat's private hand record.
func (s *Store) DeleteHand(ctx context.Context, code, seatKey string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM hands WHERE room_code = $1 AND seat_key = $2`, code, seatKey)
	return err
}

// Profile is a user's persistent record.
type Profile struct {
	UserID       string            `json:"user_id"`
	DisplayName  string            `json:"display_name"`
	PushTokens   []string          `json:"push_tokens"`
	PushEnabled  bool              `json:"push_enabled"`
	LastTurnAck  string            `json:"last_turn_ack"`
	LastRoomCode string            `json:"last_room_code"`
	Nicknames    map[string]string `json:"nicknames"`
}

// GetProfile reads a profile; (nil, nil) when the user has none yet.
func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if s == nil || s.pool == nil || userID == "" {
		return nil, nil
	}
	var p Profile
	var tokens, nicknames []byte
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, display_name, push_tokens, push_enabled, last_turn_ack, last_room_code, nicknames
		FROM profiles WHERE user_id = $1`,
		userID).Scan(&p.UserID, &p.DisplayName, &tokens, &p.PushEnabled, &p.LastTurnAck, &p.LastRoomCode, &nicknames)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tokens, &p.PushTokens); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(nicknames, &p.Nicknames); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ensureProfile(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

// SetDisplayName stores the user's display name.
func (s *Store) SetDisplayName(ctx context.Context, userID, name string) error {
	if s == nil || s.pool == nil || userID == "" {
		return nil
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `UPDATE profiles SET display_name = $2, updated_at = now() WHERE user_id = $1`, userID, name)
	return err
}

// AddPushToken registers a device token with set semantics and flips
// push_enabled on.
func (s *Store) AddPushToken(ctx context.Context, userID, token string) error {
	if s == nil || s.pool == nil || userID == "" || token == "" {
		return nil
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE profiles
		SET push_tokens = CASE WHEN push_tokens @> to_jsonb($2::text) THEN push_tokens ELSE push_tokens || to_jsonb($2::text) END,
		    push_enabled = TRUE,
		    updated_at = now()
		WHERE user_id = $1`,
		userID, token)
	return err
}

// RemovePushTokens prunes dead device tokens from the profile.
func (s *Store) RemovePushTokens(ctx context.Context, userID string, tokens []string) error {
	if s == nil || s.pool == nil || userID == "" || len(tokens) == 0 {
		return nil
	}
	for _, t := range tokens {
		if _, err := s.pool.Exec(ctx, `
			UPDATE profiles SET push_tokens = push_tokens - $2, updated_at = now()
			WHERE user_id = $1`,
			userID, t); err != nil {
			return err
		}
	}
	return nil
}

// SetLastTurnAck records the turn key the user last acknowledged.
func (s *Store) SetLastTurnAck(ctx context.Context, userID, turnKey string) error {
	if s == nil || s.pool == nil || userID == "" {
		return nil
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `UPDATE profiles SET last_turn_ack = $2, updated_at = now() WHERE user_id = $1`, userID, turnKey)
	return err
}

// SetLastRoom records the room code the user was last seated in.
func (s *Store) SetLastRoom(ctx context.Context, userID, code string) error {
	if s == nil || s.pool == nil || userID == "" {
		return nil
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `UPDATE profiles SET last_room_code = $2, updated_at = now() WHERE user_id = $1`, userID, code)
	return err
}

// SetNickname stores the user's per-room nickname.
func (s *Store) SetNickname(ctx context.Context, userID, code, nickname string) error {
	if s == nil || s.pool == nil || userID == "" {
		return nil
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE profiles SET nicknames = jsonb_set(nicknames, ARRAY[$2], to_jsonb($3::text)), updated_at = now()
		WHERE user_id = $1`,
		userID, code, nickname)
	return err
}

// LogRecord is one persisted room log row.
type LogRecord struct {
	ID   string    `json:"id"`
	Kind string    `json:"kind"`
	UID  string    `json:"uid,omitempty"`
	Name string    `json:"name,omitempty"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// InsertLogEntries appends room log rows. Duplicate ids are ignored so a
// re-applied state cannot double-log.
func (s *Store) InsertLogEntries(ctx context.Context, code string, entries []LogRecord) error {
	if s == nil || s.pool == nil || len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO room_log (id, room_code, kind, uid, name, body, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, code, e.Kind, e.UID, e.Name, e.Text, e.At); err != nil {
			return err
		}
	}
	return nil
}

// ListRoomLog returns the newest log rows for a room, oldest first.
func (s *Store) ListRoomLog(ctx context.Context, code string, limit int) ([]LogRecord, error) {
	if s == nil || s.pool == nil {
		return []LogRecord{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, uid, name, body, at FROM room_log
		WHERE room_code = $1 ORDER BY at DESC LIMIT $2`,
		code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LogRecord
	for rows.Next() {
		var r LogRecord
		if err := rows.Scan(&r.ID, &r.Kind, &r.UID, &r.Name, &r.Text, &r.At); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
