package game

import "ding-server/deck"

// SeatView is the client-facing representation of a seat. Hands are never
// exposed here, only their size.
type SeatView struct {
	UID       string `json:"uid,omitempty"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Tricks    int    `json:"tricks"`
	Folded    bool   `json:"folded"`
	Swapped   bool   `json:"swapped"`
	DingCount int    `json:"dingCount"`
	TotalWins int    `json:"totalWins"`
	Connected bool   `json:"connected"`
	HandCount int    `json:"handCount"`
	IsHost    bool   `json:"isHost"`
	IsDealer  bool   `json:"isDealer"`
}

// StateView is the room state sent to one seat. YourHand carries only the
// viewer's own cards; every other hand appears as a count.
type StateView struct {
	Type             string       `json:"type"`
	RoomCode         string       `json:"roomCode"`
	RoomName         string       `json:"roomName"`
	Phase            Phase        `json:"phase"`
	Settings         Settings     `json:"settings"`
	Seats            []SeatView   `json:"seats"`
	GameID           int          `json:"gameId"`
	HandID           int          `json:"handId"`
	TrickNumber      int          `json:"trickNumber"`
	DealerIndex      int          `json:"dealerIndex"`
	LeaderIndex      int          `json:"leaderIndex"`
	CurrentTurnIndex int          `json:"currentTurnIndex"`
	YourSeat         int          `json:"yourSeat"`
	YourTurn         bool         `json:"yourTurn"`
	YourHand         []deck.Card  `json:"yourHand,omitempty"`
	TrumpCard        *deck.Card   `json:"trumpCard,omitempty"`
	TrumpSuit        deck.Suit    `json:"trumpSuit,omitempty"`
	DeckCount        int          `json:"deckCount"`
	DiscardCount     int          `json:"discardCount"`
	CurrentTrick     []Play       `json:"currentTrick"`
	WonTricks        []WonTrick   `json:"wonTricks,omitempty"`
	StartVotes       []string     `json:"startVotes,omitempty"`
	WinnerIndex      int          `json:"winnerIndex"`
	LastHandSummary  *HandSummary `json:"lastHandSummary,omitempty"`
	Log              []LogEntry   `json:"log"`
	TurnKey          string       `json:"turnKey,omitempty"`
}

// logViewLimit caps how much of the room log each state message carries.
const logViewLimit = 50

// BuildStateForSeat returns the state view for one seat. seat may be -1
// for a viewer without a seat (they get no hand and no turn flag).
func (g *GameState) BuildStateForSeat(seat int) StateView {
	seats := make([]SeatView, len(g.Players))
	for i, p := range g.Players {
		seats[i] = SeatView{
			UID:       p.UID,
			Name:      p.Name,
			Score:     p.Score,
			Tricks:    p.TricksWonThisHand,
			Folded:    p.Folded,
			Swapped:   p.HasSwapped,
			DingCount: p.DingCount,
			TotalWins: p.TotalWins,
			Connected: p.Connected,
			HandCount: len(g.Hands[i]),
			IsHost:    p.UID != "" && p.UID == g.HostUID,
			IsDealer:  i == g.DealerIndex,
		}
	}

	var hand []deck.Card
	if seat >= 0 && seat < len(g.Hands) {
		hand = make([]deck.Card, len(g.Hands[seat]))
		copy(hand, g.Hands[seat])
		deck.SortForDisplay(hand)
	}

	trick := g.CurrentTrick
	if trick == nil {
		trick = []Play{}
	}

	logTail := g.Log
	if len(logTail) > logViewLimit {
		logTail = logTail[len(logTail)-logViewLimit:]
	}

	return StateView{
		Type:             "room_state",
		RoomCode:         g.RoomCode,
		RoomName:         g.RoomName,
		Phase:            g.Phase,
		Settings:         g.Settings,
		Seats:            seats,
		GameID:           g.GameID,
		HandID:           g.HandID,
		TrickNumber:      g.TrickNumber,
		DealerIndex:      g.DealerIndex,
		LeaderIndex:      g.LeaderIndex,
		CurrentTurnIndex: g.CurrentTurnIndex,
		YourSeat:         seat,
		YourTurn:         seat >= 0 && seat == g.CurrentTurnIndex && (g.Phase == PhaseSwap || g.Phase == PhaseTrick),
		YourHand:         hand,
		TrumpCard:        g.TrumpCard,
		TrumpSuit:        g.TrumpSuit,
		DeckCount:        len(g.Deck),
		DiscardCount:     len(g.DiscardPile),
		CurrentTrick:     trick,
		WonTricks:        g.WonTricks,
		StartVotes:       g.StartVotes,
		WinnerIndex:      g.WinnerIndex,
		LastHandSummary:  g.LastHandSummary,
		Log:              logTail,
		TurnKey:          g.TurnKey(),
	}
}
