package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ding-server/deck"
	"ding-server/game"
	"ding-server/gameerrors"
	"ding-server/storage"
	"ding-server/wsutil"
)

const storeTimeout = 5 * time.Second

// lastLogID returns the id of the newest room log entry, "" when empty.
// Captured before an engine call so the delta written afterwards covers
// exactly the entries that call produced.
func (r *Room) lastLogID() string {
	if n := len(r.state.Log); n > 0 {
		return r.state.Log[n-1].ID
	}
	return ""
}

// logDelta returns the log entries appended after sinceID.
func (r *Room) logDelta(sinceID string) []game.LogEntry {
	log := r.state.Log
	if sinceID == "" {
		return log
	}
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].ID == sinceID {
			return log[i+1:]
		}
	}
	// The marker was trimmed out of the bounded log; everything counts.
	return log
}

// persistAndBroadcast is the write path after every successful transition:
// new log entries go to the log table and Redis, dirty hands go to their
// private records, the room record is written with its version check, the
// dispatcher hears about a turn change, and every subscriber gets a fresh
// view.
func (r *Room) persistAndBroadcast(sinceLogID string, dirtySeats []int, deletedHandKeys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	r.persistLogDelta(ctx, sinceLogID)

	turnKey := r.state.TurnKey()
	turnUID := r.state.TurnUID()
	turnChanged := turnKey != r.lastNotifiedKey
	if turnChanged && turnKey != "" && turnUID != "" {
		r.state.LastTurnNotification = turnKey
	}

	for _, seat := range dirtySeats {
		if seat < 0 || seat >= len(r.state.Players) {
			continue
		}
		cards := r.state.Hands[seat]
		if cards == nil {
			cards = []deck.Card{}
		}
		data, err := json.Marshal(cards)
		if err != nil {
			slog.Error("marshaling hand", "tag", "room", "room", r.Code, "err", err)
			continue
		}
		if err := r.store.SaveHand(ctx, r.Code, r.state.SeatKey(seat), data); err != nil {
			slog.Error("saving hand", "tag", "room", "room", r.Code, "err", err)
		}
	}
	for _, key := range deletedHandKeys {
		if err := r.store.DeleteHand(ctx, r.Code, key); err != nil {
			slog.Error("deleting hand", "tag", "room", "room", r.Code, "err", err)
		}
	}

	r.persistRoomRecord(ctx)
	r.broadcastState()

	if turnChanged {
		r.lastNotifiedKey = turnKey
		if r.notifier != nil {
			r.notifier.TurnChanged(r.Code, r.state.RoomName, turnUID, turnKey)
		}
	}
}

// persistLogDelta writes new log entries to the store and mirrors them
// to Redis.
func (r *Room) persistLogDelta(ctx context.Context, sinceLogID string) {
	delta := r.logDelta(sinceLogID)
	if len(delta) == 0 {
		return
	}
	records := make([]storage.LogRecord, len(delta))
	for i, e := range delta {
		records[i] = storage.LogRecord{
			ID:   e.ID,
			Kind: e.Kind,
			UID:  e.UID,
			Name: e.Name,
			Text: e.Text,
			At:   e.At,
		}
	}
	if err := r.store.InsertLogEntries(ctx, r.Code, records); err != nil {
		slog.Error("saving room log", "tag", "room", "room", r.Code, "err", err)
	}
	for _, e := range delta {
		r.events.PublishRoomEvent(ctx, r.Code, e)
	}
}

// persistRoomRecord writes the room record. Losing the optimistic version
// race means another instance wrote first; the local attempt is dropped
// and the authoritative record re-applied.
func (r *Room) persistRoomRecord(ctx context.Context) {
	data, err := json.Marshal(r.state)
	if err != nil {
		slog.Error("marshaling room state", "tag", "room", "room", r.Code, "err", err)
		return
	}
	v, err := r.store.SaveRoomState(ctx, r.Code, r.state.RoomName, data, r.state.Version)
	if errors.Is(err, gameerrors.ErrStaleState) {
		slog.Warn("room write conflicted, re-reading", "tag", "room", "room", r.Code)
		remote, rv, lerr := r.store.LoadRoomState(ctx, r.Code)
		if lerr != nil {
			slog.Error("reloading room after conflict", "tag", "room", "room", r.Code, "err", lerr)
			return
		}
		r.applyRemoteState(remote, rv)
		return
	}
	if err != nil {
		slog.Error("saving room state", "tag", "room", "room", r.Code, "err", err)
		return
	}
	r.state.Version = v
}

// resyncFromStore reconciles with the shared record on the resync tick.
// Older versions than the local one are stale reads and ignored.
func (r *Room) resyncFromStore() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	v, err := r.store.RoomVersion(ctx, r.Code)
	if err != nil {
		if !errors.Is(err, gameerrors.ErrRoomNotFound) {
			slog.Error("polling room version", "tag", "room", "room", r.Code, "err", err)
		}
		return
	}
	if v <= r.state.Version {
		return
	}
	data, rv, err := r.store.LoadRoomState(ctx, r.Code)
	if err != nil {
		slog.Error("loading room state", "tag", "room", "room", r.Code, "err", err)
		return
	}
	if rv < r.state.Version {
		// A replica served an older snapshot than we already hold.
		return
	}
	r.applyRemoteState(data, rv)
	r.broadcastState()
}

// handleResync is a client-requested forced re-read of the room record
// and the caller's own hand.
func (r *Room) handleResync(sub *Subscriber) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	data, v, err := r.store.LoadRoomState(ctx, r.Code)
	if err == nil && v >= r.state.Version {
		r.applyRemoteState(data, v)
	}
	r.sendState(sub)
}

// applyRemoteState replaces the local state with a record written by
// another instance. The applyingRemote guard stops the apply path from
// re-entering itself through a conflicting persist.
func (r *Room) applyRemoteState(data []byte, version int64) {
	if r.applyingRemote {
		return
	}
	r.applyingRemote = true
	defer func() { r.applyingRemote = false }()

	next := &game.GameState{}
	if err := json.Unmarshal(data, next); err != nil {
		slog.Error("decoding remote room state", "tag", "room", "room", r.Code, "err", err)
		return
	}
	next.Version = version

	handChanged := next.HandID != r.state.HandID
	r.loadHands(next)

	// Forced kick: a connected user whose seat vanished remotely is out.
	for sub := range r.subs {
		if sub.UID == "" {
			continue
		}
		if r.state.SeatOf(sub.UID) >= 0 && next.SeatOf(sub.UID) < 0 {
			msg, _ := json.Marshal(map[string]string{
				"type":     "kicked",
				"roomCode": r.Code,
			})
			wsutil.SafeSend(sub.Send, msg)
			delete(r.subs, sub)
		}
	}

	if handChanged {
		slog.Info("remote state advanced the hand", "tag", "room", "room", r.Code, "hand", next.HandID)
	}
	r.state = next
	// The remote writer already dispatched for this turn key.
	r.lastNotifiedKey = next.LastTurnNotification
	r.turnKey.Store(next.TurnKey())
}

// loadHands fills a freshly decoded state's hands from the private
// per-seat records.
func (r *Room) loadHands(g *game.GameState) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	g.Hands = make([][]deck.Card, len(g.Players))
	for i := range g.Players {
		data, err := r.store.LoadHand(ctx, r.Code, g.SeatKey(i))
		if err != nil {
			slog.Error("loading hand", "tag", "room", "room", r.Code, "seat", i, "err", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		var cards []deck.Card
		if err := json.Unmarshal(data, &cards); err != nil {
			slog.Error("decoding hand", "tag", "room", "room", r.Code, "seat", i, "err", err)
			continue
		}
		g.Hands[i] = cards
	}
}
