package storage

import "context"

// DocStore abstracts the shared document store. Implementations can be
// swapped for testing (mocks) or different backends.
type DocStore interface {
	// Room records
	SaveRoomState(ctx context.Context, code, name string, state []byte, expectVersion int64) (int64, error)
	LoadRoomState(ctx context.Context, code string) ([]byte, int64, error)
	RoomVersion(ctx context.Context, code string) (int64, error)
	DeleteRoom(ctx context.Context, code string) error

	// Private hand records
	SaveHand(ctx context.Context, code, seatKey string, cards []byte) error
	LoadHand(ctx context.Context, code, seatKey string) ([]byte, error)
	DeleteHand(ctx context.Context, code, seatKey string) error

	// Profiles
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SetDisplayName(ctx context.Context, userID, name string) error
	AddPushToken(ctx context.Context, userID, token string) error
	RemovePushTokens(ctx context.Context, userID string, tokens []string) error
	SetLastTurnAck(ctx context.Context, userID, turnKey string) error
	SetLastRoom(ctx context.Context, userID, code string) error
	SetNickname(ctx context.Context, userID, code, nickname string) error

	// Room log
	InsertLogEntries(ctx context.Context, code string, entries []LogRecord) error
	ListRoomLog(ctx context.Context, code string, limit int) ([]LogRecord, error)

	// Lifecycle
	Close()
}

// Ensure *Store implements DocStore at compile time.
var _ DocStore = (*Store)(nil)
