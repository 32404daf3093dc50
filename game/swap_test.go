package game

import (
	"errors"
	"fmt"
	"testing"

	"ding-server/deck"
	"ding-server/gameerrors"
)

func TestSwapReplacesCardsInPlace(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")
	seat := g.CurrentTurnIndex
	hand := g.Hands[seat]
	discards := []string{hand[1].ID, hand[3].ID}
	replacements := []deck.Card{g.Deck[0], g.Deck[1]}
	shoeBefore := len(g.Deck)

	if err := g.Swap(seat, discards); err != nil {
		t.Fatalf("swap: %v", err)
	}
	got := g.Hands[seat]
	if len(got) != HandSize {
		t.Fatalf("expected a full hand after swap, got %d cards", len(got))
	}
	if got[1].ID != replacements[0].ID || got[3].ID != replacements[1].ID {
		t.Errorf("replacements not in the discarded positions: %s/%s", got[1].ID, got[3].ID)
	}
	if len(g.Deck) != shoeBefore-2 {
		t.Errorf("expected 2 cards drawn, shoe went %d -> %d", shoeBefore, len(g.Deck))
	}
	if len(g.DiscardPile) != 2 {
		t.Errorf("expected 2 discards, got %d", len(g.DiscardPile))
	}
	if !g.Players[seat].HasSwapped {
		t.Error("expected the seat marked as swapped")
	}
	if g.CurrentTurnIndex == seat {
		t.Error("expected the swap turn to advance")
	}
}

func TestSwapKeepingHandStillEndsTurn(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")
	seat := g.CurrentTurnIndex

	if err := g.Swap(seat, nil); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !g.Players[seat].HasSwapped {
		t.Error("expected the seat marked as swapped")
	}
	key := fmt.Sprintf("%d-%s", g.HandID, g.SeatKey(seat))
	if !g.SwapAnnounced[key] {
		t.Errorf("expected swap announcement recorded under %q", key)
	}
}

func TestSwapValidation(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")
	seat := g.CurrentTurnIndex
	hand := g.Hands[seat]

	other := (seat + 1) % len(g.Players)
	if err := g.Swap(other, nil); !errors.Is(err, gameerrors.ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}

	four := []string{hand[0].ID, hand[1].ID, hand[2].ID, hand[3].ID}
	if err := g.Swap(seat, four); !errors.Is(err, gameerrors.ErrTooManyDiscards) {
		t.Errorf("expected ErrTooManyDiscards, got %v", err)
	}

	if err := g.Swap(seat, []string{"2C_9"}); !errors.Is(err, gameerrors.ErrCardNotInHand) {
		t.Errorf("expected ErrCardNotInHand, got %v", err)
	}
}

func TestSwapRejectsSecondSwap(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")
	seat := g.CurrentTurnIndex

	if err := g.Swap(seat, nil); err != nil {
		t.Fatalf("swap: %v", err)
	}
	g.CurrentTurnIndex = seat
	if err := g.Swap(seat, nil); !errors.Is(err, gameerrors.ErrAlreadySwapped) {
		t.Errorf("expected ErrAlreadySwapped, got %v", err)
	}
}

func TestAllSwappedOpensTrickPhase(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")

	for g.Phase == PhaseSwap {
		if err := g.Swap(g.CurrentTurnIndex, nil); err != nil {
			t.Fatalf("swap seat %d: %v", g.CurrentTurnIndex, err)
		}
	}
	if g.Phase != PhaseTrick {
		t.Fatalf("expected TRICK, got %s", g.Phase)
	}
	if g.TrickNumber != 1 {
		t.Errorf("expected trick 1, got %d", g.TrickNumber)
	}
	if g.CurrentTurnIndex != g.LeaderIndex {
		t.Errorf("expected the leader to open, turn=%d leader=%d", g.CurrentTurnIndex, g.LeaderIndex)
	}
	if g.CurrentTurnIndex != g.DealerIndex {
		t.Errorf("expected the dealer to lead trick 1, turn=%d dealer=%d", g.CurrentTurnIndex, g.DealerIndex)
	}
}

func TestSwapShortShoeFillsLowestPositionsFirst(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")
	seat := g.CurrentTurnIndex
	hand := append([]deck.Card(nil), g.Hands[seat]...)
	drawn := g.Deck[0]
	g.Deck = g.Deck[:1]

	// Wire order deliberately descending; positions fill ascending.
	discards := []string{hand[4].ID, hand[0].ID, hand[2].ID}
	if err := g.Swap(seat, discards); err != nil {
		t.Fatalf("swap: %v", err)
	}
	got := g.Hands[seat]
	if len(got) != 3 {
		t.Fatalf("expected a 3-card hand after the shoe ran dry, got %d cards", len(got))
	}
	if got[0].ID != drawn.ID {
		t.Errorf("expected the last shoe card at the lowest discarded position, got %s", got[0].ID)
	}
	if got[1].ID != hand[1].ID || got[2].ID != hand[3].ID {
		t.Errorf("kept cards out of place: %s/%s", got[1].ID, got[2].ID)
	}
	if len(g.Deck) != 0 {
		t.Errorf("expected the shoe empty, got %d cards", len(g.Deck))
	}
}

func TestFoldDealerRejected(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")
	g.CurrentTurnIndex = g.DealerIndex

	if err := g.Fold(g.DealerIndex); !errors.Is(err, gameerrors.ErrDealerCannotFold) {
		t.Errorf("expected ErrDealerCannotFold, got %v", err)
	}
}

func TestFoldMovesHandToDiscard(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")
	seat := g.CurrentTurnIndex
	if seat == g.DealerIndex {
		t.Fatalf("fixture broken: dealer opens the swap phase")
	}

	if err := g.Fold(seat); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if !g.Players[seat].Folded {
		t.Error("expected the seat folded")
	}
	if len(g.Hands[seat]) != 0 {
		t.Errorf("expected the folded hand emptied, got %d cards", len(g.Hands[seat]))
	}
	if len(g.DiscardPile) != HandSize {
		t.Errorf("expected %d cards discarded, got %d", HandSize, len(g.DiscardPile))
	}
	if g.CurrentTurnIndex == seat {
		t.Error("expected the turn to advance past the folded seat")
	}
}

func TestFoldNoPenaltyAboveThreshold(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")
	seat := g.CurrentTurnIndex

	if err := g.Fold(seat); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if got := g.Players[seat].Score; got != g.Settings.StartingScore {
		t.Errorf("expected score untouched at %d, got %d", g.Settings.StartingScore, got)
	}
}

func TestFoldPenaltyThresholdMode(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")
	seat := g.CurrentTurnIndex
	g.Players[seat].Score = 2

	if err := g.Fold(seat); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if got := g.Players[seat].Score; got != g.Settings.FoldThreshold {
		t.Errorf("expected score raised to the threshold %d, got %d", g.Settings.FoldThreshold, got)
	}
}

func TestFoldPenaltyIncreaseMode(t *testing.T) {
	g := startedGame(t, "Ana", "Bram", "Cleo")
	g.Settings.FoldPenalty = FoldPenaltyIncrease
	seat := g.CurrentTurnIndex
	g.Players[seat].Score = 2

	if err := g.Fold(seat); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if got := g.Players[seat].Score; got != 3 {
		t.Errorf("expected score bumped to 3, got %d", got)
	}
}

func TestAllFoldedCreditsDealerFiveTricks(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")
	seat := g.CurrentTurnIndex

	if err := g.Fold(seat); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if !g.HandEndedByFolds {
		t.Fatal("expected the hand ended by folds")
	}
	if g.Phase != PhaseHandEnd {
		t.Fatalf("expected HAND_END, got %s", g.Phase)
	}
	dealer := g.LastHandSummary.Seats[g.FoldWinIndex]
	if dealer.Tricks != HandSize {
		t.Errorf("expected the dealer credited %d tricks, got %d", HandSize, dealer.Tricks)
	}
	if want := g.Settings.StartingScore - HandSize; dealer.Score != want {
		t.Errorf("expected dealer score %d, got %d", want, dealer.Score)
	}
	if g.LastHandSummary.Reason != EndAllFolded {
		t.Errorf("expected reason %q, got %q", EndAllFolded, g.LastHandSummary.Reason)
	}
}

func TestAllFoldedDiscardsTrumpExactlyOnce(t *testing.T) {
	g := startedGame(t, "Ana", "Bram")
	trumpID := g.TrumpCard.ID

	if err := g.Fold(g.CurrentTurnIndex); err != nil {
		t.Fatalf("fold: %v", err)
	}
	count := 0
	for _, c := range g.DiscardPile {
		if c.ID == trumpID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("trump card %s appears %d times in the discard pile, want 1", trumpID, count)
	}
	if total := len(g.DiscardPile) + len(g.Deck); total != deck.CardsPerDeck {
		t.Errorf("expected all %d cards accounted for, got %d", deck.CardsPerDeck, total)
	}
	if g.TrumpCard != nil || g.TrumpSuit != "" {
		t.Error("expected the trump cleared at hand end")
	}
}
