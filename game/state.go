package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"ding-server/deck"
)

// Phase is the room's current phase. Serialized as-is in the room record.
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseSwap     Phase = "SWAP"
	PhaseTrick    Phase = "TRICK"
	PhaseHandEnd  Phase = "HAND_END"
	PhaseGameOver Phase = "GAME_OVER"
)

// MaxPlayers is the seat limit per room.
const MaxPlayers = 6

// HandSize is the number of cards dealt to each seat.
const HandSize = 5

// MaxSwapDiscards is the most cards a seat may exchange during SWAP.
const MaxSwapDiscards = 3

// maxLogEntries bounds the room log kept in the room record.
const maxLogEntries = 200

// Dealer rules.
const (
	DealerRotate          = "ROTATE"
	DealerLastTrickWinner = "LAST_TRICK_WINNER"
)

// Fold penalties.
const (
	FoldPenaltyThreshold = "threshold"
	FoldPenaltyIncrease  = "increase"
)

// Hand end reasons.
const (
	EndAllTricks = "all_tricks"
	EndFastTrack = "fast_track"
	EndAllFolded = "all_folded"
)

// Settings are the host-tunable room rules.
type Settings struct {
	StartingScore  int    `json:"startingScore"`
	FoldThreshold  int    `json:"foldThreshold"`
	FoldPenalty    string `json:"foldPenalty"`
	Decks          int    `json:"decks"`
	DealerRule     string `json:"dealerRule"`
	Hyperrealistic bool   `json:"hyperrealistic"`
}

// DefaultSettings returns the room rules used when a room is created.
func DefaultSettings() Settings {
	return Settings{
		StartingScore:  20,
		FoldThreshold:  5,
		FoldPenalty:    FoldPenaltyThreshold,
		Decks:          1,
		DealerRule:     DealerRotate,
		Hyperrealistic: false,
	}
}

// Clamp forces all settings into their legal ranges.
func (s *Settings) Clamp() {
	if s.StartingScore < 5 {
		s.StartingScore = 5
	}
	if s.StartingScore > 50 {
		s.StartingScore = 50
	}
	if s.FoldThreshold < 0 {
		s.FoldThreshold = 0
	}
	if s.FoldThreshold > 20 {
		s.FoldThreshold = 20
	}
	if s.FoldPenalty != FoldPenaltyIncrease {
		s.FoldPenalty = FoldPenaltyThreshold
	}
	if s.Decks < 1 {
		s.Decks = 1
	}
	if s.Decks > 2 {
		s.Decks = 2
	}
	if s.DealerRule != DealerLastTrickWinner {
		s.DealerRule = DealerRotate
	}
}

// Player is one seat in the room. UID is empty for hotseat seats.
type Player struct {
	UID               string `json:"uid,omitempty"`
	Name              string `json:"name"`
	Score             int    `json:"score"`
	TricksWonThisHand int    `json:"tricksWonThisHand"`
	Folded            bool   `json:"folded"`
	HasSwapped        bool   `json:"hasSwapped"`
	DingCount         int    `json:"dingCount"`
	TotalWins         int    `json:"totalWins"`
	Connected         bool   `json:"connected"`
}

// Play is one card played into the current trick.
type Play struct {
	Seat int       `json:"seat"`
	Card deck.Card `json:"card"`
}

// WonTrick records a resolved trick for the hand summary.
type WonTrick struct {
	Winner int       `json:"winner"`
	Cards  []deck.Card `json:"cards"`
}

// LogEntry is one line of the room log: game events, system notices and chat.
type LogEntry struct {
	ID    string    `json:"id"`
	Kind  string    `json:"kind"` // "game", "system" or "chat"
	UID   string    `json:"uid,omitempty"`
	Name  string    `json:"name,omitempty"`
	Text  string    `json:"text"`
	Likes []string  `json:"likes,omitempty"`
	At    time.Time `json:"at"`
}

// SeatSummary is one seat's line in the end-of-hand summary.
type SeatSummary struct {
	Name   string `json:"name"`
	Tricks int    `json:"tricks"`
	Score  int    `json:"score"`
	Dinged bool   `json:"dinged"`
	Folded bool   `json:"folded"`
}

// HandSummary recaps the last completed hand.
type HandSummary struct {
	HandID int           `json:"handId"`
	Reason string        `json:"reason"`
	Seats  []SeatSummary `json:"seats"`
}

// GameState is the full authoritative state of one room. It is mutated only
// through its transition methods, each of which validates phase, seat and
// turn first. The struct does no I/O and keeps no timers, so a single
// goroutine can own it and tests can drive it directly.
//
// Hands and the RNG are excluded from the serialized room record: hands
// are persisted as private per-seat records, and the RNG is per-instance.
type GameState struct {
	RoomCode string `json:"roomCode"`
	RoomName string `json:"roomName"`
	HostUID  string `json:"hostUid"`

	Phase    Phase    `json:"phase"`
	Settings Settings `json:"settings"`
	Players  []Player `json:"players"`

	GameID      int `json:"gameId"`
	HandID      int `json:"handId"`
	TrickNumber int `json:"trickNumber"`

	DealerIndex      int `json:"dealerIndex"`
	LeaderIndex      int `json:"leaderIndex"`
	CurrentTurnIndex int `json:"currentTurnIndex"`

	TrumpCard *deck.Card  `json:"trumpCard,omitempty"`
	TrumpSuit deck.Suit   `json:"trumpSuit,omitempty"`
	Deck      []deck.Card `json:"deck"`

	CurrentTrick []Play      `json:"currentTrick"`
	WonTricks    []WonTrick  `json:"wonTricks"`
	PlayedCards  []deck.Card `json:"playedCards"`
	DiscardPile  []deck.Card `json:"discardPile"`

	StartVotes       []string `json:"startVotes,omitempty"`
	HandEndedByFolds bool     `json:"handEndedByFolds"`
	FoldWinIndex     int      `json:"foldWinIndex"`
	WinnerIndex      int      `json:"winnerIndex"`

	LastHandSummary *HandSummary `json:"lastHandSummary,omitempty"`
	Log             []LogEntry   `json:"log"`

	// SwapAnnounced marks hand/seat swap announcements already logged,
	// keyed "<handId>-<seatKey>", so a re-applied remote state does not
	// repeat them.
	SwapAnnounced map[string]bool `json:"swapAnnounced,omitempty"`

	// LastTurnNotification is the turn key the dispatcher last pushed for.
	LastTurnNotification string `json:"lastTurnNotification,omitempty"`

	// Version is bumped by the store on every write; used for staleness checks.
	Version int64 `json:"version"`

	Hands [][]deck.Card `json:"-"`
	rng   *rand.Rand
}

// NewGameState creates an empty room in LOBBY with default settings.
// rng may be nil, in which case a time-seeded source is used.
func NewGameState(roomCode, roomName string, rng *rand.Rand) *GameState {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &GameState{
		RoomCode:     roomCode,
		RoomName:     roomName,
		Phase:        PhaseLobby,
		Settings:     DefaultSettings(),
		Players:      []Player{},
		FoldWinIndex: -1,
		WinnerIndex:  -1,
		Log:          []LogEntry{},
		rng:          rng,
	}
}

// SetRNG replaces the deal/swap randomness source. Used after loading a
// state from the store, where the RNG is not serialized.
func (g *GameState) SetRNG(rng *rand.Rand) {
	g.rng = rng
}

func (g *GameState) ensureRNG() *rand.Rand {
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g.rng
}

// SeatKey returns the persistence key for a seat's private hand record:
// the uid when the seat is bound to a user, "seat<i>" for hotseat seats.
func (g *GameState) SeatKey(i int) string {
	if i >= 0 && i < len(g.Players) && g.Players[i].UID != "" {
		return g.Players[i].UID
	}
	return fmt.Sprintf("seat%d", i)
}

// SeatOf returns the seat index for a uid, or -1.
func (g *GameState) SeatOf(uid string) int {
	if uid == "" {
		return -1
	}
	for i, p := range g.Players {
		if p.UID == uid {
			return i
		}
	}
	return -1
}

// ActiveCount returns the number of seats still in the current hand.
func (g *GameState) ActiveCount() int {
	n := 0
	for _, p := range g.Players {
		if !p.Folded {
			n++
		}
	}
	return n
}

// firstActiveIndex returns the first unfolded seat at or after start, wrapping.
// Returns -1 when every seat has folded.
func (g *GameState) firstActiveIndex(start int) int {
	n := len(g.Players)
	if n == 0 {
		return -1
	}
	for off := 0; off < n; off++ {
		i := ((start+off)%n + n) % n
		if !g.Players[i].Folded {
			return i
		}
	}
	return -1
}

// nextActiveIndex returns the first unfolded seat strictly after i, wrapping.
func (g *GameState) nextActiveIndex(i int) int {
	return g.firstActiveIndex(i + 1)
}

// TurnKey identifies the current turn for notification dedup and acks.
// Empty when no seat has the turn (LOBBY, HAND_END, GAME_OVER).
func (g *GameState) TurnKey() string {
	if g.Phase != PhaseSwap && g.Phase != PhaseTrick {
		return ""
	}
	return fmt.Sprintf("%d-%d-%d-%s", g.HandID, g.TrickNumber, g.CurrentTurnIndex, g.Phase)
}

// TurnUID returns the uid of the seat whose turn it is, "" when no seat
// has the turn or the seat is a hotseat seat.
func (g *GameState) TurnUID() string {
	if g.TurnKey() == "" {
		return ""
	}
	if g.CurrentTurnIndex < 0 || g.CurrentTurnIndex >= len(g.Players) {
		return ""
	}
	return g.Players[g.CurrentTurnIndex].UID
}

// appendLog adds an entry to the room log, trimming the oldest past the cap.
func (g *GameState) appendLog(kind, uid, name, text string) LogEntry {
	e := LogEntry{
		ID:   uuid.NewString(),
		Kind: kind,
		UID:  uid,
		Name: name,
		Text: text,
		At:   time.Now().UTC(),
	}
	g.Log = append(g.Log, e)
	if len(g.Log) > maxLogEntries {
		g.Log = g.Log[len(g.Log)-maxLogEntries:]
	}
	return e
}

// logGame appends a game event line.
func (g *GameState) logGame(text string) LogEntry {
	return g.appendLog("game", "", "", text)
}

// logSystem appends a system notice line.
func (g *GameState) logSystem(text string) LogEntry {
	return g.appendLog("system", "", "", text)
}
