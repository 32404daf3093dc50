package room

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ding-server/cache"
	"ding-server/config"
	"ding-server/game"
	"ding-server/gameerrors"
	"ding-server/notify"
	"ding-server/storage"
)

// roomCodeAlphabet avoids look-alike characters (I, L, O, 0, 1).
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// RoomCodeLength is the length of generated room codes.
const RoomCodeLength = 6

// Manager tracks live rooms and revives persisted ones on demand.
type Manager struct {
	cfg      *config.Config
	store    storage.DocStore
	events   *cache.Publisher
	notifier *notify.Dispatcher

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewManager creates a room manager.
func NewManager(cfg *config.Config, store storage.DocStore, events *cache.Publisher) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  store,
		events: events,
		rooms:  make(map[string]*Room),
	}
}

// SetNotifier wires the notification dispatcher in after construction
// (the dispatcher's recheck probe points back at this manager).
func (m *Manager) SetNotifier(d *notify.Dispatcher) {
	m.notifier = d
}

// NormalizeRoomCode uppercases and strips a user-entered room code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeRoomName trims a room name and caps its length.
func (m *Manager) NormalizeRoomName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if len(name) > m.cfg.MaxRoomNameLength {
		name = name[:m.cfg.MaxRoomNameLength]
	}
	return name
}

// DefaultRoomName derives a room name from the creator's display name.
func DefaultRoomName(hostName string) string {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return "Player's Lobby"
	}
	return hostName + "'s Lobby"
}

// generateCode returns a fresh room code not present in memory or the store.
func (m *Manager) generateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, RoomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := make([]byte, RoomCodeLength)
		for i, b := range buf {
			code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
		}
		candidate := string(code)

		m.mu.Lock()
		_, live := m.rooms[candidate]
		m.mu.Unlock()
		if live {
			continue
		}
		if _, err := m.store.RoomVersion(ctx, candidate); err == nil {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("could not generate a unique room code")
}

// CreateRoom creates, persists and starts a new room.
func (m *Manager) CreateRoom(ctx context.Context, name, hostName string, hotseat bool) (*Room, error) {
	code, err := m.generateCode(ctx)
	if err != nil {
		return nil, err
	}
	name = m.NormalizeRoomName(name)
	if name == "" {
		name = DefaultRoomName(hostName)
	}

	state := game.NewGameState(code, name, nil)
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	v, err := m.store.SaveRoomState(ctx, code, name, data, 0)
	if err != nil {
		return nil, err
	}
	state.Version = v

	r := newRoom(m.cfg, m.store, m.events, m.notifier, state, hotseat)
	r.OnClosed = m.roomClosed

	m.mu.Lock()
	m.rooms[code] = r
	m.mu.Unlock()

	go r.Run()
	slog.Info("room created", "tag", "room", "room", code, "name", name, "hotseat", hotseat)
	return r, nil
}

// GetRoom returns the live room for a code, reviving it from the store
// when another instance (or a previous run) persisted it.
func (m *Manager) GetRoom(ctx context.Context, code string) (*Room, error) {
	code = NormalizeRoomCode(code)
	if code == "" {
		return nil, gameerrors.ErrRoomNotFound
	}

	m.mu.Lock()
	if r, ok := m.rooms[code]; ok {
		m.mu.Unlock()
		return r, nil
	}
	m.mu.Unlock()

	data, v, err := m.store.LoadRoomState(ctx, code)
	if err != nil {
		return nil, err
	}
	state := game.NewGameState(code, "", nil)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	state.Version = v

	r := newRoom(m.cfg, m.store, m.events, m.notifier, state, false)
	r.OnClosed = m.roomClosed
	r.loadHands(state)

	m.mu.Lock()
	// Someone else may have revived it while we were reading.
	if existing, ok := m.rooms[code]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.rooms[code] = r
	m.mu.Unlock()

	go r.Run()
	slog.Info("room revived from store", "tag", "room", "room", code)
	return r, nil
}

// CurrentTurnKey implements notify.RoomProbe: the room's turn key right
// now, from memory when the room is live, from the store otherwise.
func (m *Manager) CurrentTurnKey(code string) string {
	m.mu.Lock()
	r, ok := m.rooms[code]
	m.mu.Unlock()
	if ok {
		return r.TurnKeySnapshot()
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	data, _, err := m.store.LoadRoomState(ctx, code)
	if err != nil {
		return ""
	}
	var state game.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return ""
	}
	return state.TurnKey()
}

func (m *Manager) roomClosed(code string) {
	m.mu.Lock()
	delete(m.rooms, code)
	m.mu.Unlock()
}

// Shutdown stops every live room loop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		select {
		case r.Actions <- Action{Type: ActionShutdown}:
		case <-r.Done:
		}
	}
}

var _ notify.RoomProbe = (*Manager)(nil)
