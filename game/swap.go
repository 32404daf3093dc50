package game

import (
	"fmt"
	"sort"

	"ding-server/deck"
	"ding-server/gameerrors"
)

// Swap exchanges up to 3 cards from the seat's hand for fresh cards off
// the top of the shoe. Each replacement lands in the discarded card's
// position; if the shoe runs dry mid-swap the slot stays empty and the
// hand plays short. Discards go to the discard pile.
func (g *GameState) Swap(seat int, discardIDs []string) error {
	if g.Phase != PhaseSwap {
		return gameerrors.ErrWrongPhase
	}
	if seat != g.CurrentTurnIndex {
		return gameerrors.ErrNotYourTurn
	}
	p := &g.Players[seat]
	if p.Folded {
		return gameerrors.ErrFolded
	}
	if p.HasSwapped {
		return gameerrors.ErrAlreadySwapped
	}
	if len(discardIDs) > MaxSwapDiscards {
		return gameerrors.ErrTooManyDiscards
	}
	positions := make([]int, 0, len(discardIDs))
	for _, id := range discardIDs {
		idx := deck.IndexOf(g.Hands[seat], id)
		if idx < 0 {
			return gameerrors.ErrCardNotInHand
		}
		positions = append(positions, idx)
	}
	// Replacements fill the discarded positions in ascending order, so a
	// short shoe fills the lowest slots first regardless of request order.
	sort.Ints(positions)
	for i := 1; i < len(positions); i++ {
		if positions[i] == positions[i-1] {
			return gameerrors.ErrCardNotInHand
		}
	}

	removed := 0
	for _, pos := range positions {
		idx := pos - removed
		discarded := g.Hands[seat][idx]
		g.DiscardPile = append(g.DiscardPile, discarded)
		if g.TrumpCard != nil && g.TrumpCard.ID == discarded.ID {
			// Trump display card left the game; the trump suit stands.
			g.TrumpCard = nil
		}
		if len(g.Deck) > 0 {
			g.Hands[seat][idx] = g.Deck[0]
			g.Deck = g.Deck[1:]
		} else {
			g.Hands[seat] = append(g.Hands[seat][:idx], g.Hands[seat][idx+1:]...)
			removed++
		}
	}
	p.HasSwapped = true
	g.announceSwap(seat, len(discardIDs))
	g.advanceSwapTurn()
	return nil
}

// announceSwap logs the seat's swap count once per hand and seat, so a
// state re-applied from the store does not repeat the announcement.
func (g *GameState) announceSwap(seat, count int) {
	key := fmt.Sprintf("%d-%s", g.HandID, g.SeatKey(seat))
	if g.SwapAnnounced[key] {
		return
	}
	if g.SwapAnnounced == nil {
		g.SwapAnnounced = make(map[string]bool)
	}
	g.SwapAnnounced[key] = true
	name := g.Players[seat].Name
	switch count {
	case 0:
		g.logGame(fmt.Sprintf("%s keeps their hand", name))
	case 1:
		g.logGame(fmt.Sprintf("%s swaps 1 card", name))
	default:
		g.logGame(fmt.Sprintf("%s swaps %d cards", name, count))
	}
}

// advanceSwapTurn moves the swap turn to the next active seat that has not
// swapped yet; when none remain the trick phase opens with the leader.
func (g *GameState) advanceSwapTurn() {
	n := len(g.Players)
	for off := 1; off <= n; off++ {
		i := (g.CurrentTurnIndex + off) % n
		p := g.Players[i]
		if !p.Folded && !p.HasSwapped {
			g.CurrentTurnIndex = i
			return
		}
	}
	g.Phase = PhaseTrick
	g.TrickNumber = 1
	g.CurrentTurnIndex = g.firstActiveIndex(g.LeaderIndex)
}

// Fold drops the seat out of the current hand during SWAP. The dealer can
// never fold. A seat folding below the fold threshold pays the penalty.
// When folding leaves fewer than two active seats the hand ends at once,
// and if the last seat standing is the dealer they are credited a full
// five tricks before scoring.
func (g *GameState) Fold(seat int) error {
	if g.Phase != PhaseSwap {
		return gameerrors.ErrWrongPhase
	}
	if seat != g.CurrentTurnIndex {
		return gameerrors.ErrNotYourTurn
	}
	if seat == g.DealerIndex {
		return gameerrors.ErrDealerCannotFold
	}
	p := &g.Players[seat]
	if p.Folded {
		return gameerrors.ErrFolded
	}

	p.Folded = true
	if p.Score < g.Settings.FoldThreshold {
		if g.Settings.FoldPenalty == FoldPenaltyIncrease {
			p.Score++
		} else {
			p.Score = g.Settings.FoldThreshold
		}
		g.logGame(fmt.Sprintf("%s folds and pays the penalty (score %d)", p.Name, p.Score))
	} else {
		g.logGame(fmt.Sprintf("%s folds", p.Name))
	}

	for _, c := range g.Hands[seat] {
		g.DiscardPile = append(g.DiscardPile, c)
		if g.TrumpCard != nil && g.TrumpCard.ID == c.ID {
			g.TrumpCard = nil
			g.TrumpSuit = ""
		}
	}
	g.Hands[seat] = nil

	if g.ActiveCount() < 2 {
		g.HandEndedByFolds = true
		g.FoldWinIndex = g.firstActiveIndex(0)
		if g.FoldWinIndex == g.DealerIndex && g.FoldWinIndex >= 0 {
			g.Players[g.FoldWinIndex].TricksWonThisHand = HandSize
		}
		g.endHand(EndAllFolded)
		return nil
	}
	g.advanceSwapTurn()
	return nil
}
