package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestBuildStateForSeatShowsOnlyOwnHand(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")

	view := g.BuildStateForSeat(1)
	if view.YourSeat != 1 {
		t.Errorf("expected seat 1, got %d", view.YourSeat)
	}
	if len(view.YourHand) != HandSize {
		t.Errorf("expected the viewer's %d cards, got %d", HandSize, len(view.YourHand))
	}
	for i, s := range view.Seats {
		if s.HandCount != HandSize {
			t.Errorf("seat %d: expected hand count %d, got %d", i, HandSize, s.HandCount)
		}
	}

	own := make(map[string]bool)
	for _, c := range g.Hands[1] {
		own[c.ID] = true
	}
	for _, c := range view.YourHand {
		if !own[c.ID] {
			t.Errorf("card %s in the view is not seat 1's", c.ID)
		}
	}

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	for _, c := range g.Hands[0] {
		if g.TrumpCard != nil && c.ID == g.TrumpCard.ID {
			continue // the face-up trump is public
		}
		if strings.Contains(string(raw), fmt.Sprintf("%q", c.ID)) {
			t.Errorf("seat 0's card %s leaked into seat 1's view", c.ID)
		}
	}
}

func TestBuildStateForSeatlessViewer(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")

	view := g.BuildStateForSeat(-1)
	if view.YourSeat != -1 {
		t.Errorf("expected seat -1, got %d", view.YourSeat)
	}
	if len(view.YourHand) != 0 {
		t.Errorf("expected no hand for a seatless viewer, got %d cards", len(view.YourHand))
	}
	if view.YourTurn {
		t.Error("a seatless viewer never has the turn")
	}
}

func TestBuildStateYourTurnFlag(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")

	on := g.BuildStateForSeat(g.CurrentTurnIndex)
	if !on.YourTurn {
		t.Error("expected YourTurn for the seat on turn")
	}
	off := g.BuildStateForSeat((g.CurrentTurnIndex + 1) % 2)
	if off.YourTurn {
		t.Error("expected YourTurn false off turn")
	}
}

func TestBuildStateTrimsLogTail(t *testing.T) {
	g := newTestRoom(t, "Ana", "Bram")
	for i := 0; i < logViewLimit+20; i++ {
		g.logSystem(fmt.Sprintf("line %d", i))
	}

	view := g.BuildStateForSeat(0)
	if len(view.Log) != logViewLimit {
		t.Fatalf("expected %d log lines, got %d", logViewLimit, len(view.Log))
	}
	if view.Log[len(view.Log)-1].Text != fmt.Sprintf("line %d", logViewLimit+19) {
		t.Errorf("expected the newest line last, got %q", view.Log[len(view.Log)-1].Text)
	}
}

func TestBuildStateCountsNotCards(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")

	view := g.BuildStateForSeat(0)
	if view.DeckCount != len(g.Deck) {
		t.Errorf("expected deck count %d, got %d", len(g.Deck), view.DeckCount)
	}
	if view.TurnKey != g.TurnKey() {
		t.Errorf("expected turn key %q, got %q", g.TurnKey(), view.TurnKey)
	}
}
