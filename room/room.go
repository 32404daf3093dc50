package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"ding-server/cache"
	"ding-server/config"
	"ding-server/game"
	"ding-server/gameerrors"
	"ding-server/notify"
	"ding-server/storage"
	"ding-server/wsutil"
)

// Subscriber is one connected client's view into a room. Send is the
// client's outbound channel; UID is empty for unauthenticated hotseat play.
type Subscriber struct {
	UID  string
	Name string
	Send chan []byte
}

// ActionType enumerates the kinds of actions a room can process.
type ActionType int

const (
	ActionJoin ActionType = iota
	ActionAddSeat    // hotseat: seat an extra local player
	ActionDetach     // connection dropped; seat stays, marked disconnected
	ActionLeaveRoom  // leave permanently; seat and hand record removed
	ActionVoteStart
	ActionStartGame
	ActionDealNext
	ActionSwap
	ActionFold
	ActionPlayCard
	ActionNewGame
	ActionUpdateSettings
	ActionKick
	ActionMakeHost
	ActionChat
	ActionLike
	ActionAckTurn
	ActionResync    // client-requested forced re-read of the room record
	ActionShutdown  // internal: manager tears the room down
)

// Action is one request sent into the room's action channel.
type Action struct {
	Type     ActionType
	Sub      *Subscriber
	Seat     int // seat-addressed actions in hotseat rooms; -1 to derive from Sub.UID
	Name     string
	CardID   string
	Discards []string
	Settings *game.Settings
	Text     string
	EntryID  string
	TurnKey  string
}

// Room owns one game's state. A single goroutine (Run) consumes Actions;
// every engine transition, store write and broadcast happens there, so
// the state never needs a lock.
type Room struct {
	Code    string
	Name    string
	Hotseat bool

	cfg      *config.Config
	store    storage.DocStore
	events   *cache.Publisher
	notifier *notify.Dispatcher

	state *game.GameState
	subs  map[*Subscriber]bool

	applyingRemote  bool
	lastNotifiedKey string
	turnKey         atomic.Value // string; read by the notify probe
	emptySince      time.Time

	Actions chan Action
	Done    chan struct{}

	// OnClosed is called after the loop exits so the manager can drop
	// the room from its map.
	OnClosed func(code string)
}

func newRoom(cfg *config.Config, store storage.DocStore, events *cache.Publisher, notifier *notify.Dispatcher, state *game.GameState, hotseat bool) *Room {
	r := &Room{
		Code:     state.RoomCode,
		Name:     state.RoomName,
		Hotseat:  hotseat,
		cfg:      cfg,
		store:    store,
		events:   events,
		notifier: notifier,
		state:    state,
		subs:     make(map[*Subscriber]bool),
		Actions:  make(chan Action, 32),
		Done:     make(chan struct{}),
	}
	r.turnKey.Store(state.TurnKey())
	return r
}

// TurnKeySnapshot returns the room's current turn key without entering
// the loop. Used by the notification recheck.
func (r *Room) TurnKeySnapshot() string {
	v, _ := r.turnKey.Load().(string)
	return v
}

// Run is the room's main loop. It processes actions sequentially and
// periodically reconciles with the shared room record. Should be run as
// a goroutine.
func (r *Room) Run() {
	defer func() {
		if r.notifier != nil {
			r.notifier.CancelRoom(r.Code)
		}
		close(r.Done)
		if r.OnClosed != nil {
			r.OnClosed(r.Code)
		}
	}()

	resync := time.NewTicker(time.Duration(r.cfg.ResyncIntervalSec) * time.Second)
	defer resync.Stop()
	r.emptySince = time.Now()

	for {
		select {
		case action := <-r.Actions:
			if action.Type == ActionShutdown {
				return
			}
			r.handle(action)
		case <-resync.C:
			r.resyncFromStore()
			if r.idleExpired() {
				r.teardown()
				return
			}
		}
	}
}

// idleExpired reports whether the room has had no subscribers for longer
// than the grace period.
func (r *Room) idleExpired() bool {
	if len(r.subs) > 0 {
		r.emptySince = time.Time{}
		return false
	}
	if r.emptySince.IsZero() {
		r.emptySince = time.Now()
		return false
	}
	return time.Since(r.emptySince) > time.Duration(r.cfg.RoomGraceSec)*time.Second
}

// teardown deletes an abandoned room's records when no seat is bound to
// a user anymore. Rooms with seated users are kept so they can return.
func (r *Room) teardown() {
	seated := false
	for _, p := range r.state.Players {
		if p.UID != "" {
			seated = true
			break
		}
	}
	if !seated {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.DeleteRoom(ctx, r.Code); err != nil {
			slog.Error("deleting room", "tag", "room", "room", r.Code, "err", err)
		}
	}
	slog.Info("room closed", "tag", "room", "room", r.Code)
}

func (r *Room) handle(a Action) {
	switch a.Type {
	case ActionJoin:
		r.handleJoin(a.Sub)
		return
	case ActionDetach:
		r.handleDetach(a.Sub)
		return
	case ActionResync:
		r.handleResync(a.Sub)
		return
	case ActionAckTurn:
		r.handleAckTurn(a.Sub, a.TurnKey)
		return
	}

	seat := r.seatFor(a)
	lastLogID := r.lastLogID()
	var dirty []int
	var deletedHandKeys []string
	var err error

	switch a.Type {
	case ActionAddSeat:
		err = r.handleAddSeat(a)
	case ActionLeaveRoom:
		var key string
		key, err = r.handleLeave(a.Sub, seat)
		if key != "" {
			deletedHandKeys = append(deletedHandKeys, key)
			dirty = allSeats(r.state)
		}
	case ActionVoteStart:
		err = r.state.CastStartVote(a.Sub.UID)
		if err == nil && r.state.Phase != game.PhaseLobby {
			dirty = allSeats(r.state)
		}
	case ActionStartGame:
		err = r.authorize(a, func(uid string) error { return r.state.StartGame(uid) })
		if err == nil {
			dirty = allSeats(r.state)
		}
	case ActionDealNext:
		err = r.state.DealNext(seat)
		if err == nil {
			dirty = allSeats(r.state)
		}
	case ActionSwap:
		err = r.state.Swap(seat, a.Discards)
		if err == nil {
			dirty = []int{seat}
		}
	case ActionFold:
		err = r.state.Fold(seat)
		if err == nil {
			dirty = allSeats(r.state)
		}
	case ActionPlayCard:
		err = r.state.Play(seat, a.CardID)
		if err == nil {
			dirty = []int{seat}
			if r.state.Phase == game.PhaseHandEnd || r.state.Phase == game.PhaseGameOver {
				dirty = allSeats(r.state)
			}
		}
	case ActionNewGame:
		err = r.authorize(a, func(uid string) error { return r.state.BeginNewGame(uid) })
		if err == nil {
			dirty = allSeats(r.state)
		}
	case ActionUpdateSettings:
		if a.Settings == nil {
			return
		}
		err = r.authorize(a, func(uid string) error { return r.state.UpdateSettings(uid, *a.Settings) })
	case ActionKick:
		var key string
		key, err = r.state.KickPlayer(a.Sub.UID, a.Seat)
		if key != "" {
			deletedHandKeys = append(deletedHandKeys, key)
			dirty = allSeats(r.state)
			r.notifyKicked(a.Seat, key)
		}
	case ActionMakeHost:
		err = r.state.MakeHost(a.Sub.UID, a.Seat)
	case ActionChat:
		_, err = r.state.AddChat(a.Sub.UID, a.Text)
	case ActionLike:
		err = r.state.ToggleLike(a.Sub.UID, a.EntryID)
	default:
		return
	}

	if err != nil {
		r.sendError(a.Sub, err.Error())
		return
	}
	r.persistAndBroadcast(lastLogID, dirty, deletedHandKeys)
}

// seatFor resolves which seat an action addresses. Multiplayer actions
// always act as the sender's own seat; hotseat rooms accept an explicit
// seat from their single controlling client.
func (r *Room) seatFor(a Action) int {
	if r.Hotseat && a.Seat >= 0 {
		return a.Seat
	}
	if a.Sub == nil {
		return -1
	}
	return r.state.SeatOf(a.Sub.UID)
}

// authorize runs fn as the acting uid. Hotseat rooms act as the host so
// a single local client can drive host-gated operations.
func (r *Room) authorize(a Action, fn func(uid string) error) error {
	uid := ""
	if a.Sub != nil {
		uid = a.Sub.UID
	}
	if r.Hotseat && uid == "" {
		uid = r.state.HostUID
	}
	return fn(uid)
}

func allSeats(g *game.GameState) []int {
	seats := make([]int, len(g.Players))
	for i := range seats {
		seats[i] = i
	}
	return seats
}

func (r *Room) handleJoin(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.subs[sub] = true
	r.emptySince = time.Time{}

	lastLogID := r.lastLogID()
	seat, err := r.state.JoinRoom(sub.UID, sub.Name)
	if err != nil {
		// Seatless viewers still get state so a rejected joiner sees why.
		r.sendError(sub, err.Error())
		r.sendState(sub)
		return
	}
	if sub.UID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.SetLastRoom(ctx, sub.UID, r.Code); err != nil {
			slog.Error("saving last room", "tag", "room", "uid", sub.UID, "err", err)
		}
		cancel()
	}
	r.persistAndBroadcast(lastLogID, []int{seat}, nil)
}

// handleAddSeat seats an extra named local player in a hotseat room.
func (r *Room) handleAddSeat(a Action) error {
	if !r.Hotseat {
		return gameerrors.ErrHotseatOnly
	}
	_, err := r.state.JoinRoom("", a.Name)
	return err
}

func (r *Room) handleDetach(sub *Subscriber) {
	if sub == nil {
		return
	}
	delete(r.subs, sub)
	if len(r.subs) == 0 {
		r.emptySince = time.Now()
	}
	if sub.UID != "" {
		lastLogID := r.lastLogID()
		r.state.MarkDisconnected(sub.UID)
		r.persistAndBroadcast(lastLogID, nil, nil)
	}
}

func (r *Room) handleLeave(sub *Subscriber, seat int) (string, error) {
	if sub == nil {
		return "", nil
	}
	delete(r.subs, sub)
	if len(r.subs) == 0 {
		r.emptySince = time.Now()
	}
	if seat < 0 {
		return "", nil
	}
	return r.state.RemovePlayer(seat, false)
}

func (r *Room) handleAckTurn(sub *Subscriber, turnKey string) {
	if sub == nil || sub.UID == "" || turnKey == "" {
		return
	}
	// Only the seat whose turn it is can acknowledge it.
	if r.state.TurnUID() != sub.UID || r.state.TurnKey() != turnKey {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SetLastTurnAck(ctx, sub.UID, turnKey); err != nil {
		slog.Error("saving turn ack", "tag", "room", "uid", sub.UID, "err", err)
	}
}

// notifyKicked tells the kicked player's connections they are out.
func (r *Room) notifyKicked(seat int, handKey string) {
	msg, _ := json.Marshal(map[string]string{
		"type":     "kicked",
		"roomCode": r.Code,
	})
	for sub := range r.subs {
		if sub.UID != "" && sub.UID == handKey {
			wsutil.SafeSend(sub.Send, msg)
			delete(r.subs, sub)
		}
	}
}

func (r *Room) sendError(sub *Subscriber, message string) {
	if sub == nil || sub.Send == nil {
		return
	}
	msg, _ := json.Marshal(map[string]string{
		"type":    "error",
		"message": message,
	})
	wsutil.SafeSend(sub.Send, msg)
}

func (r *Room) sendState(sub *Subscriber) {
	if sub == nil || sub.Send == nil {
		return
	}
	seat := r.state.SeatOf(sub.UID)
	view := r.state.BuildStateForSeat(seat)
	data, err := json.Marshal(view)
	if err != nil {
		slog.Error("marshaling room state", "tag", "room", "err", err)
		return
	}
	wsutil.SafeSend(sub.Send, data)
}

// broadcastState sends each subscriber its own view. Hotseat rooms get
// every hand through per-seat view requests instead (the single client
// owns all seats, so it receives the host view plus seat hands on demand).
func (r *Room) broadcastState() {
	r.turnKey.Store(r.state.TurnKey())
	if r.Hotseat {
		r.broadcastHotseat()
		return
	}
	for sub := range r.subs {
		r.sendState(sub)
	}
}

// broadcastHotseat sends the full table to the room's client: the public
// view plus every seat's hand, since all seats sit at one device.
func (r *Room) broadcastHotseat() {
	view := r.state.BuildStateForSeat(-1)
	hands := make(map[int]any, len(r.state.Players))
	for i := range r.state.Players {
		seatView := r.state.BuildStateForSeat(i)
		hands[i] = seatView.YourHand
	}
	payload := struct {
		game.StateView
		Hands map[int]any `json:"hands"`
	}{view, hands}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshaling hotseat state", "tag", "room", "err", err)
		return
	}
	for sub := range r.subs {
		wsutil.SafeSend(sub.Send, data)
	}
}
