package game

import (
	"fmt"

	"ding-server/deck"
	"ding-server/gameerrors"
)

// Play puts a card from the seat's hand into the current trick. The lead
// suit must be followed when the hand holds it, unless the room plays
// hyperrealistic. A full trick resolves immediately; the fifth resolved
// trick, or a player projected to zero, ends the hand.
func (g *GameState) Play(seat int, cardID string) error {
	if g.Phase != PhaseTrick {
		return gameerrors.ErrWrongPhase
	}
	if seat != g.CurrentTurnIndex {
		return gameerrors.ErrNotYourTurn
	}
	p := &g.Players[seat]
	if p.Folded {
		return gameerrors.ErrFolded
	}
	idx := deck.IndexOf(g.Hands[seat], cardID)
	if idx < 0 {
		return gameerrors.ErrCardNotInHand
	}
	card := g.Hands[seat][idx]

	if !g.Settings.Hyperrealistic && len(g.CurrentTrick) > 0 {
		lead := g.CurrentTrick[0].Card.Suit
		if card.Suit != lead && deck.HasSuit(g.Hands[seat], lead) {
			return gameerrors.ErrMustFollowSuit
		}
	}

	g.Hands[seat] = append(g.Hands[seat][:idx], g.Hands[seat][idx+1:]...)
	g.CurrentTrick = append(g.CurrentTrick, Play{Seat: seat, Card: card})
	if g.TrumpCard != nil && g.TrumpCard.ID == card.ID {
		g.TrumpCard = nil
	}

	if len(g.CurrentTrick) >= g.ActiveCount() {
		g.resolveTrick()
		return nil
	}
	g.CurrentTurnIndex = g.nextActiveIndex(seat)
	return nil
}

// resolveTrick awards the open trick and either advances to the next one
// or ends the hand.
func (g *GameState) resolveTrick() {
	plays := make([]deck.Card, len(g.CurrentTrick))
	for i, p := range g.CurrentTrick {
		plays[i] = p.Card
	}
	lead := plays[0].Suit
	winIdx := deck.WinningIndex(plays, lead, g.TrumpSuit)
	winner := g.CurrentTrick[winIdx].Seat

	g.Players[winner].TricksWonThisHand++
	g.WonTricks = append(g.WonTricks, WonTrick{Winner: winner, Cards: plays})
	g.PlayedCards = append(g.PlayedCards, plays...)
	g.CurrentTrick = nil
	g.LeaderIndex = winner
	g.CurrentTurnIndex = winner

	g.logGame(fmt.Sprintf("%s takes trick %d with %s",
		g.Players[winner].Name, g.TrickNumber, deck.Label(plays[winIdx])))

	// A player about to reach zero ends the hand without playing it out.
	for _, p := range g.Players {
		if !p.Folded && p.Score-p.TricksWonThisHand <= 0 {
			g.endHand(EndFastTrack)
			return
		}
	}

	if g.TrickNumber >= HandSize {
		g.endHand(EndAllTricks)
		return
	}
	g.TrickNumber++
}
