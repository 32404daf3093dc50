package game

import (
	"fmt"

	"ding-server/deck"
	"ding-server/gameerrors"
)

// DealNext deals the next hand. Only the dealer may deal, and only from
// HAND_END. A fresh game parks in HAND_END, so the first hand goes
// through here too.
func (g *GameState) DealNext(seat int) error {
	if g.Phase != PhaseHandEnd {
		return gameerrors.ErrWrongPhase
	}
	if seat != g.DealerIndex {
		return gameerrors.ErrNotYourTurn
	}
	return g.deal()
}

// deal shuffles a fresh shoe and hands out 5 cards per seat, one card per
// round in seat order starting left of the dealer with the dealer last.
// The dealer's final card fixes the trump suit and stays in their hand.
func (g *GameState) deal() error {
	n := len(g.Players)
	if n < 2 {
		return gameerrors.ErrNotEnoughPlayers
	}
	shoe := deck.BuildShoe(g.Settings.Decks)
	if len(shoe) < n*HandSize {
		return fmt.Errorf("shoe too small for %d players", n)
	}
	deck.Shuffle(shoe, g.ensureRNG())

	g.HandID++
	g.TrickNumber = 0
	g.CurrentTrick = nil
	g.WonTricks = nil
	g.PlayedCards = nil
	g.HandEndedByFolds = false
	g.FoldWinIndex = -1
	for i := range g.Players {
		g.Players[i].TricksWonThisHand = 0
		g.Players[i].Folded = false
		g.Players[i].HasSwapped = false
		g.Hands[i] = make([]deck.Card, 0, HandSize)
	}

	// Seat order for each round: dealer+1, dealer+2, ..., dealer.
	order := make([]int, 0, n)
	for off := 1; off <= n; off++ {
		order = append(order, (g.DealerIndex+off)%n)
	}

	var last deck.Card
	for round := 0; round < HandSize; round++ {
		for _, seat := range order {
			last = shoe[0]
			shoe = shoe[1:]
			g.Hands[seat] = append(g.Hands[seat], last)
		}
	}
	g.Deck = shoe
	g.TrumpCard = &last
	g.TrumpSuit = last.Suit

	g.Phase = PhaseSwap
	// The dealer leads the first trick; the swap round starts to their left.
	g.LeaderIndex = g.DealerIndex
	g.CurrentTurnIndex = g.firstActiveIndex(g.DealerIndex + 1)

	g.logGame(fmt.Sprintf("Hand %d dealt by %s, trump is %s",
		g.HandID, g.Players[g.DealerIndex].Name, deck.Label(last)))
	return nil
}
