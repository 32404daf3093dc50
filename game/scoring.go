package game

import (
	"fmt"

	"ding-server/deck"
)

// endHand scores the completed hand, detects a winner, rotates the dealer
// and parks the room in HAND_END (or GAME_OVER).
//
// Scoring: every unfolded seat subtracts its tricks from its score, floored
// at zero. A seat that played the full hand and took nothing gets DINGED:
// its score resets to the starting score and its ding count goes up. Folded
// seats already paid at fold time and are left alone here.
func (g *GameState) endHand(reason string) {
	summary := &HandSummary{HandID: g.HandID, Reason: reason, Seats: make([]SeatSummary, 0, len(g.Players))}

	for i := range g.Players {
		p := &g.Players[i]
		dinged := false
		if !p.Folded {
			if reason == EndAllTricks && p.TricksWonThisHand == 0 {
				p.Score = g.Settings.StartingScore
				p.DingCount++
				dinged = true
				g.logGame(fmt.Sprintf("DING! %s took no tricks and resets to %d", p.Name, p.Score))
			} else {
				p.Score -= p.TricksWonThisHand
				if p.Score < 0 {
					p.Score = 0
				}
			}
		}
		summary.Seats = append(summary.Seats, SeatSummary{
			Name:   p.Name,
			Tricks: p.TricksWonThisHand,
			Score:  p.Score,
			Dinged: dinged,
			Folded: p.Folded,
		})
	}
	g.LastHandSummary = summary

	// Return any cards still in play to the discard pile.
	for _, play := range g.CurrentTrick {
		g.DiscardPile = append(g.DiscardPile, play.Card)
	}
	g.CurrentTrick = nil
	if g.TrumpCard != nil {
		// On fold- and fast-track-ended hands the trump card is still in
		// the dealer's hand and gets discarded with it below.
		held := false
		for i := range g.Hands {
			if deck.IndexOf(g.Hands[i], g.TrumpCard.ID) >= 0 {
				held = true
				break
			}
		}
		if !held {
			g.DiscardPile = append(g.DiscardPile, *g.TrumpCard)
		}
		g.TrumpCard = nil
	}
	g.TrumpSuit = ""
	for i := range g.Hands {
		g.DiscardPile = append(g.DiscardPile, g.Hands[i]...)
		g.Hands[i] = nil
	}

	for i := range g.Players {
		if !g.Players[i].Folded && g.Players[i].Score <= 0 {
			g.Players[i].Score = 0
			g.Players[i].TotalWins++
			g.WinnerIndex = i
			g.Phase = PhaseGameOver
			g.logGame(fmt.Sprintf("%s wins the game!", g.Players[i].Name))
			return
		}
	}

	g.rotateDealer(reason)
	g.Phase = PhaseHandEnd
	g.TrickNumber = 0
	g.CurrentTurnIndex = g.DealerIndex
	g.logGame(fmt.Sprintf("Hand %d over, %s deals next", g.HandID, g.Players[g.DealerIndex].Name))
}

// rotateDealer picks the next dealer per the room's dealer rule.
func (g *GameState) rotateDealer(reason string) {
	if len(g.Players) == 0 {
		return
	}
	if g.Settings.DealerRule == DealerLastTrickWinner {
		if reason == EndAllFolded {
			// No trick was won, so the deal stays where it was.
			return
		}
		if len(g.WonTricks) > 0 {
			g.DealerIndex = g.WonTricks[len(g.WonTricks)-1].Winner
			return
		}
	}
	g.DealerIndex = (g.DealerIndex + 1) % len(g.Players)
}

// TrumpLabel returns the display form of the trump, preferring the face-up
// card when it is still visible.
func (g *GameState) TrumpLabel() string {
	if g.TrumpCard != nil {
		return deck.Label(*g.TrumpCard)
	}
	if g.TrumpSuit != "" {
		return string(g.TrumpSuit)
	}
	return ""
}
