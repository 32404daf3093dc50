package game

import (
	"errors"
	"testing"

	"ding-server/deck"
	"ding-server/gameerrors"
)

// fixtureInTrick builds a room mid-trick with explicit hands, seat 0 leading.
func fixtureInTrick(t *testing.T, trump deck.Suit, hands ...[]deck.Card) *GameState {
	t.Helper()
	names := []string{"Ana", "Bram", "Cleo", "Dan", "Eve", "Finn"}
	g := newTestRoom(t, names[:len(hands)]...)
	g.Phase = PhaseTrick
	g.GameID = 1
	g.HandID = 1
	g.TrickNumber = 1
	g.TrumpSuit = trump
	g.DealerIndex = len(hands) - 1
	g.LeaderIndex = 0
	g.CurrentTurnIndex = 0
	for i := range g.Players {
		g.Players[i].Score = g.Settings.StartingScore
	}
	for i, h := range hands {
		g.Hands[i] = append([]deck.Card(nil), h...)
	}
	return g
}

func TestPlayMustFollowSuit(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0), deck.New(13, deck.Clubs, 0)},
	)

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "13C_0"); !errors.Is(err, gameerrors.ErrMustFollowSuit) {
		t.Fatalf("expected ErrMustFollowSuit, got %v", err)
	}
	if err := g.Play(1, "2H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if g.Players[0].TricksWonThisHand != 1 {
		t.Errorf("expected the 9 of hearts to take the trick")
	}
}

func TestPlayHyperrealisticSkipsSuitCheck(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0), deck.New(13, deck.Clubs, 0)},
	)
	g.Settings.Hyperrealistic = true

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "13C_0"); err != nil {
		t.Fatalf("expected the off-suit play allowed, got %v", err)
	}
}

func TestPlayValidation(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0)},
	)

	if err := g.Play(1, "2H_0"); !errors.Is(err, gameerrors.ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}
	if err := g.Play(0, "14S_0"); !errors.Is(err, gameerrors.ErrCardNotInHand) {
		t.Errorf("expected ErrCardNotInHand, got %v", err)
	}

	g.Phase = PhaseSwap
	if err := g.Play(0, "9H_0"); !errors.Is(err, gameerrors.ErrWrongPhase) {
		t.Errorf("expected ErrWrongPhase, got %v", err)
	}
}

func TestTrumpTakesTheTrick(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(14, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Spades, 0)},
	)

	if err := g.Play(0, "14H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "2S_0"); err != nil {
		t.Fatalf("trump: %v", err)
	}
	if g.Players[1].TricksWonThisHand != 1 {
		t.Error("expected the low trump to win")
	}
	if g.LeaderIndex != 1 || g.CurrentTurnIndex != 1 {
		t.Errorf("expected the winner to lead next, leader=%d turn=%d", g.LeaderIndex, g.CurrentTurnIndex)
	}
	if g.TrickNumber != 2 {
		t.Errorf("expected trick 2, got %d", g.TrickNumber)
	}
}

func TestPlaySkipsFoldedSeats(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(10, deck.Hearts, 0)},
		[]deck.Card{deck.New(4, deck.Hearts, 0)},
	)
	g.Players[1].Folded = true
	g.Hands[1] = nil

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if g.CurrentTurnIndex != 2 {
		t.Fatalf("expected the turn to skip the folded seat, got %d", g.CurrentTurnIndex)
	}
	if err := g.Play(2, "4H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if g.Players[0].TricksWonThisHand != 1 {
		t.Error("expected seat 0 to take the two-card trick")
	}
}

func TestFastTrackEndsHandAndGame(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0)},
	)
	g.Players[0].Score = 1

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "2H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if g.Phase != PhaseGameOver {
		t.Fatalf("expected GAME_OVER, got %s", g.Phase)
	}
	if g.WinnerIndex != 0 || g.Players[0].Score != 0 || g.Players[0].TotalWins != 1 {
		t.Errorf("unexpected winner state: idx=%d %+v", g.WinnerIndex, g.Players[0])
	}
	if g.LastHandSummary == nil || g.LastHandSummary.Reason != EndFastTrack {
		t.Errorf("expected a fast-track hand summary, got %+v", g.LastHandSummary)
	}
}

func TestFifthTrickEndsHand(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0)},
	)
	g.TrickNumber = HandSize
	g.Players[0].TricksWonThisHand = 2
	g.Players[1].TricksWonThisHand = 2
	g.DealerIndex = 0

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "2H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if g.Phase != PhaseHandEnd {
		t.Fatalf("expected HAND_END, got %s", g.Phase)
	}
	if got := g.Players[0].Score; got != g.Settings.StartingScore-3 {
		t.Errorf("expected seat 0 at %d, got %d", g.Settings.StartingScore-3, got)
	}
	if got := g.Players[1].Score; got != g.Settings.StartingScore-2 {
		t.Errorf("expected seat 1 at %d, got %d", g.Settings.StartingScore-2, got)
	}
	if g.DealerIndex != 1 {
		t.Errorf("expected the deal to rotate to seat 1, got %d", g.DealerIndex)
	}
	if g.CurrentTurnIndex != g.DealerIndex {
		t.Errorf("expected the dealer on turn in HAND_END, got %d", g.CurrentTurnIndex)
	}
	if g.TrumpSuit != "" {
		t.Errorf("expected the trump suit cleared at hand end, got %s", g.TrumpSuit)
	}
}

func TestDingResetsScore(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0)},
	)
	g.TrickNumber = HandSize
	g.Players[0].TricksWonThisHand = 4
	g.Players[1].TricksWonThisHand = 0

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "2H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if got := g.Players[1].Score; got != g.Settings.StartingScore {
		t.Errorf("expected the dinged seat reset to %d, got %d", g.Settings.StartingScore, got)
	}
	if g.Players[1].DingCount != 1 {
		t.Errorf("expected ding count 1, got %d", g.Players[1].DingCount)
	}
	if got := g.Players[0].Score; got != g.Settings.StartingScore-5 {
		t.Errorf("expected seat 0 at %d, got %d", g.Settings.StartingScore-5, got)
	}
	if !g.LastHandSummary.Seats[1].Dinged {
		t.Error("expected the summary to flag the ding")
	}
}

func TestFoldedSeatIsNeverDinged(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0)},
		nil,
	)
	g.Players[2].Folded = true
	g.Players[2].Score = 7
	g.TrickNumber = HandSize
	g.Players[0].TricksWonThisHand = 4

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "2H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if got := g.Players[2].Score; got != 7 {
		t.Errorf("expected the folded seat untouched at 7, got %d", got)
	}
	if g.Players[2].DingCount != 0 {
		t.Error("folded seat must not be dinged")
	}
}

func TestDealerRuleLastTrickWinner(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0)},
		[]deck.Card{deck.New(13, deck.Hearts, 0)},
	)
	g.Settings.DealerRule = DealerLastTrickWinner
	g.TrickNumber = HandSize
	g.DealerIndex = 0
	g.Players[0].TricksWonThisHand = 2
	g.Players[1].TricksWonThisHand = 2

	if err := g.Play(0, "9H_0"); err != nil {
		t.Fatalf("lead: %v", err)
	}
	if err := g.Play(1, "2H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if err := g.Play(2, "13H_0"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if g.Phase != PhaseHandEnd {
		t.Fatalf("expected HAND_END, got %s", g.Phase)
	}
	if g.DealerIndex != 2 {
		t.Errorf("expected the last trick winner to deal next, got %d", g.DealerIndex)
	}
}

func TestDealerRuleLastTrickWinnerKeepsDealerOnFoldEnd(t *testing.T) {
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{deck.New(9, deck.Hearts, 0)},
		[]deck.Card{deck.New(2, deck.Hearts, 0)},
	)
	g.Settings.DealerRule = DealerLastTrickWinner
	g.DealerIndex = 0
	g.FoldWinIndex = 1

	g.endHand(EndAllFolded)
	if g.DealerIndex != 0 {
		t.Errorf("expected the deal to stay put with no trick won, got %d", g.DealerIndex)
	}
}

func TestTrumpCardLeavesDisplayWhenPlayed(t *testing.T) {
	trump := deck.New(5, deck.Spades, 0)
	g := fixtureInTrick(t, deck.Spades,
		[]deck.Card{trump},
		[]deck.Card{deck.New(2, deck.Hearts, 0), deck.New(3, deck.Spades, 0)},
	)
	g.TrumpCard = &trump

	if err := g.Play(0, trump.ID); err != nil {
		t.Fatalf("play trump: %v", err)
	}
	if g.TrumpCard != nil {
		t.Error("expected the face-up trump cleared once played")
	}
	if g.TrumpSuit != deck.Spades {
		t.Error("trump suit must survive the card leaving display")
	}
}
