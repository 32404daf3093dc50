package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ding-server/storage"
)

// DefaultRecheckDelay is how long after a turn push the dispatcher waits
// before deciding whether to nudge the player once more.
const DefaultRecheckDelay = 15 * time.Second

// Notification is one push message.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendResult is the per-token outcome of a multicast.
type SendResult struct {
	Token string
	Code  string // empty on success
}

// Invalid reports whether the result means the token is dead and should
// be pruned from the profile.
func (r SendResult) Invalid() bool {
	switch r.Code {
	case "unregistered", "invalid-registration-token", "invalid-argument":
		return true
	}
	return false
}

// Transient reports whether the result is worth one immediate retry.
func (r SendResult) Transient() bool {
	switch r.Code {
	case "unavailable", "internal":
		return true
	}
	return false
}

// Pusher delivers a notification to a batch of device tokens.
type Pusher interface {
	SendMulticast(ctx context.Context, tokens []string, n Notification) ([]SendResult, error)
}

// ProfileStore is the slice of the document store the dispatcher needs.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*storage.Profile, error)
	RemovePushTokens(ctx context.Context, userID string, tokens []string) error
}

// RoomProbe answers what a room's current turn key is at recheck time.
type RoomProbe interface {
	CurrentTurnKey(roomCode string) string
}

// Dispatcher pushes "your turn" notifications. Each turn change sends one
// multicast (plus at most one retry batch for transiently failed tokens)
// and schedules a single delayed recheck that fires only if the turn has
// not moved on and the player has not acknowledged it. A turn key is
// never pushed more than twice.
type Dispatcher struct {
	store ProfileStore
	push  Pusher
	probe RoomProbe
	delay time.Duration

	mu       sync.Mutex
	rechecks map[string]*time.Timer // by room code
}

// NewDispatcher builds a dispatcher. push may be nil, which disables all
// notifications.
func NewDispatcher(store ProfileStore, push Pusher, probe RoomProbe, delay time.Duration) *Dispatcher {
	if delay <= 0 {
		delay = DefaultRecheckDelay
	}
	return &Dispatcher{
		store:    store,
		push:     push,
		probe:    probe,
		delay:    delay,
		rechecks: make(map[string]*time.Timer),
	}
}

// TurnChanged is called by the room loop whenever the turn passes to a
// seated uid. It supersedes any pending recheck for the room.
func (d *Dispatcher) TurnChanged(roomCode, roomName, uid, turnKey string) {
	if d == nil {
		return
	}
	d.cancelRecheck(roomCode)
	if d.push == nil || uid == "" || turnKey == "" {
		return
	}
	go d.dispatch(roomCode, roomName, uid, turnKey)
}

// CancelRoom drops any pending recheck, e.g. on room teardown.
func (d *Dispatcher) CancelRoom(roomCode string) {
	if d == nil {
		return
	}
	d.cancelRecheck(roomCode)
}

func (d *Dispatcher) cancelRecheck(roomCode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.rechecks[roomCode]; ok {
		t.Stop()
		delete(d.rechecks, roomCode)
	}
}

func (d *Dispatcher) dispatch(roomCode, roomName, uid, turnKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokens := d.tokensFor(ctx, uid)
	if len(tokens) == 0 {
		return
	}

	n := Notification{
		Title: "DING Online",
		Body:  "It's your turn in " + roomName,
		Data: map[string]string{
			"roomCode": roomCode,
			"turnKey":  turnKey,
		},
	}
	d.sendBatch(ctx, uid, tokens, n, true)
	d.scheduleRecheck(roomCode, roomName, uid, turnKey)
}

// tokensFor resolves the user's deduped push tokens, empty when push is
// disabled or the profile has none.
func (d *Dispatcher) tokensFor(ctx context.Context, uid string) []string {
	profile, err := d.store.GetProfile(ctx, uid)
	if err != nil {
		slog.Error("loading profile for push", "tag", "notify", "uid", uid, "err", err)
		return nil
	}
	if profile == nil || !profile.PushEnabled {
		return nil
	}
	seen := make(map[string]bool, len(profile.PushTokens))
	tokens := make([]string, 0, len(profile.PushTokens))
	for _, t := range profile.PushTokens {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return tokens
}

// sendBatch multicasts to tokens, prunes dead ones, and retries transient
// failures exactly once when allowRetry is set.
func (d *Dispatcher) sendBatch(ctx context.Context, uid string, tokens []string, n Notification, allowRetry bool) {
	results, err := d.push.SendMulticast(ctx, tokens, n)
	if err != nil {
		slog.Error("push multicast failed", "tag", "notify", "uid", uid, "err", err)
		return
	}
	var dead, retry []string
	for _, r := range results {
		switch {
		case r.Code == "":
		case r.Invalid():
			dead = append(dead, r.Token)
		case r.Transient() && allowRetry:
			retry = append(retry, r.Token)
		default:
			slog.Warn("push send failed", "tag", "notify", "uid", uid, "code", r.Code)
		}
	}
	if len(dead) > 0 {
		if err := d.store.RemovePushTokens(ctx, uid, dead); err != nil {
			slog.Error("pruning push tokens", "tag", "notify", "uid", uid, "err", err)
		} else {
			slog.Info("pruned dead push tokens", "tag", "notify", "uid", uid, "count", len(dead))
		}
	}
	if len(retry) > 0 {
		d.sendBatch(ctx, uid, retry, n, false)
	}
}

// scheduleRecheck arms the one-shot delayed resend. It fires only if the
// room's turn key is unchanged and the player has not acknowledged the
// turn; either way it never re-arms itself.
func (d *Dispatcher) scheduleRecheck(roomCode, roomName, uid, turnKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.rechecks[roomCode]; ok {
		t.Stop()
	}
	d.rechecks[roomCode] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.rechecks, roomCode)
		d.mu.Unlock()
		d.recheck(roomCode, roomName, uid, turnKey)
	})
}

func (d *Dispatcher) recheck(roomCode, roomName, uid, turnKey string) {
	if d.probe != nil && d.probe.CurrentTurnKey(roomCode) != turnKey {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile, err := d.store.GetProfile(ctx, uid)
	if err != nil {
		slog.Error("loading profile for recheck", "tag", "notify", "uid", uid, "err", err)
		return
	}
	if profile == nil || profile.LastTurnAck == turnKey {
		return
	}
	tokens := d.tokensFor(ctx, uid)
	if len(tokens) == 0 {
		return
	}
	n := Notification{
		Title: "DING Online",
		Body:  "Still your turn in " + roomName,
		Data: map[string]string{
			"roomCode": roomCode,
			"turnKey":  turnKey,
		},
	}
	d.sendBatch(ctx, uid, tokens, n, false)
}
