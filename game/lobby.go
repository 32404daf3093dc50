package game

import (
	"fmt"
	"strings"

	"ding-server/gameerrors"
)

// JoinRoom seats a player. An already-seated uid reconnects in any phase;
// new seats are only added in the LOBBY. The first seated uid becomes host.
func (g *GameState) JoinRoom(uid, name string) (int, error) {
	if seat := g.SeatOf(uid); seat >= 0 {
		g.Players[seat].Connected = true
		if name != "" {
			g.Players[seat].Name = name
		}
		return seat, nil
	}
	if g.Phase != PhaseLobby {
		return -1, gameerrors.ErrWrongPhase
	}
	if len(g.Players) >= MaxPlayers {
		return -1, gameerrors.ErrRoomFull
	}
	g.Players = append(g.Players, Player{
		UID:       uid,
		Name:      name,
		Connected: uid != "",
	})
	g.Hands = append(g.Hands, nil)
	if g.HostUID == "" && uid != "" {
		g.HostUID = uid
	}
	g.logSystem(fmt.Sprintf("%s joined the room", name))
	return len(g.Players) - 1, nil
}

// MarkDisconnected flags a seat as disconnected without removing it.
func (g *GameState) MarkDisconnected(uid string) {
	if seat := g.SeatOf(uid); seat >= 0 {
		g.Players[seat].Connected = false
	}
}

// RemovePlayer removes a seat entirely (leave or kick) and repairs every
// index that pointed past or at it. Returns the removed seat's hand key so
// the caller can delete the private hand record.
func (g *GameState) RemovePlayer(seat int, kicked bool) (string, error) {
	if seat < 0 || seat >= len(g.Players) {
		return "", gameerrors.ErrNotInRoom
	}
	removed := g.Players[seat]
	handKey := g.SeatKey(seat)

	g.Players = append(g.Players[:seat], g.Players[seat+1:]...)
	g.Hands = append(g.Hands[:seat], g.Hands[seat+1:]...)

	adjust := func(idx int) int {
		if idx > seat {
			return idx - 1
		}
		if idx == seat && idx >= len(g.Players) {
			return 0
		}
		return idx
	}
	g.DealerIndex = adjust(g.DealerIndex)
	g.LeaderIndex = adjust(g.LeaderIndex)
	g.CurrentTurnIndex = adjust(g.CurrentTurnIndex)
	if g.FoldWinIndex >= 0 {
		g.FoldWinIndex = adjust(g.FoldWinIndex)
	}
	if g.WinnerIndex >= 0 {
		g.WinnerIndex = adjust(g.WinnerIndex)
	}

	// Drop the leaver's plays from the open trick and re-point the rest.
	if len(g.CurrentTrick) > 0 {
		kept := g.CurrentTrick[:0]
		for _, p := range g.CurrentTrick {
			if p.Seat == seat {
				continue
			}
			if p.Seat > seat {
				p.Seat--
			}
			kept = append(kept, p)
		}
		g.CurrentTrick = kept
	}

	// Remove any pending start vote.
	if removed.UID != "" {
		votes := g.StartVotes[:0]
		for _, v := range g.StartVotes {
			if v != removed.UID {
				votes = append(votes, v)
			}
		}
		g.StartVotes = votes
	}

	if removed.UID != "" && removed.UID == g.HostUID {
		g.HostUID = ""
		for _, p := range g.Players {
			if p.UID != "" {
				g.HostUID = p.UID
				break
			}
		}
	}

	if kicked {
		g.logSystem(fmt.Sprintf("%s was removed from the room", removed.Name))
	} else {
		g.logSystem(fmt.Sprintf("%s left the room", removed.Name))
	}

	// A running hand cannot continue below 2 active seats.
	if (g.Phase == PhaseSwap || g.Phase == PhaseTrick) && g.ActiveCount() < 2 {
		g.HandEndedByFolds = true
		g.FoldWinIndex = g.firstActiveIndex(0)
		if g.FoldWinIndex == g.DealerIndex && g.FoldWinIndex >= 0 {
			g.Players[g.FoldWinIndex].TricksWonThisHand = HandSize
		}
		g.endHand(EndAllFolded)
	} else if len(g.Players) == 0 {
		g.Phase = PhaseLobby
	}
	return handKey, nil
}

// KickPlayer removes a seat at the host's request.
func (g *GameState) KickPlayer(hostUID string, seat int) (string, error) {
	if hostUID == "" || hostUID != g.HostUID {
		return "", gameerrors.ErrNotHost
	}
	if seat >= 0 && seat < len(g.Players) && g.Players[seat].UID == hostUID {
		return "", gameerrors.ErrNotHost
	}
	return g.RemovePlayer(seat, true)
}

// MakeHost transfers host rights to another seated uid.
func (g *GameState) MakeHost(hostUID string, seat int) error {
	if hostUID == "" || hostUID != g.HostUID {
		return gameerrors.ErrNotHost
	}
	if seat < 0 || seat >= len(g.Players) || g.Players[seat].UID == "" {
		return gameerrors.ErrNotInRoom
	}
	g.HostUID = g.Players[seat].UID
	g.logSystem(fmt.Sprintf("%s is now the host", g.Players[seat].Name))
	return nil
}

// seatedUIDs returns the uids currently bound to seats.
func (g *GameState) seatedUIDs() []string {
	uids := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		if p.UID != "" {
			uids = append(uids, p.UID)
		}
	}
	return uids
}

// CastStartVote records a LOBBY start vote. When every seated uid has
// voted and at least two players are seated, the game starts on its own.
func (g *GameState) CastStartVote(uid string) error {
	if g.Phase != PhaseLobby {
		return gameerrors.ErrWrongPhase
	}
	if g.SeatOf(uid) < 0 {
		return gameerrors.ErrNotInRoom
	}
	for _, v := range g.StartVotes {
		if v == uid {
			return gameerrors.ErrAlreadyVoted
		}
	}
	g.StartVotes = append(g.StartVotes, uid)

	seated := g.seatedUIDs()
	if len(g.Players) < 2 || len(g.StartVotes) < len(seated) {
		return nil
	}
	g.logSystem("All players voted to start")
	return g.startGame()
}

// StartGame starts a new game at the host's request.
func (g *GameState) StartGame(uid string) error {
	if g.Phase != PhaseLobby {
		return gameerrors.ErrWrongPhase
	}
	if uid != g.HostUID {
		return gameerrors.ErrNotHost
	}
	return g.startGame()
}

func (g *GameState) startGame() error {
	if len(g.Players) < 2 {
		return gameerrors.ErrNotEnoughPlayers
	}
	g.GameID++
	g.HandID = 0
	g.StartVotes = nil
	g.WinnerIndex = -1
	g.LastHandSummary = nil
	for i := range g.Players {
		// DingCount is a lifetime stat and survives game starts.
		g.Players[i].Score = g.Settings.StartingScore
		g.Players[i].TricksWonThisHand = 0
		g.Players[i].Folded = false
		g.Players[i].HasSwapped = false
	}
	g.DealerIndex = 0
	g.Phase = PhaseHandEnd
	g.TrickNumber = 0
	g.CurrentTurnIndex = g.DealerIndex
	g.logGame(fmt.Sprintf("Game %d started, %s deals first", g.GameID, g.Players[g.DealerIndex].Name))
	return nil
}

// BeginNewGame returns a finished (or idle) room to the LOBBY, keeping
// seats and settings. Host only.
func (g *GameState) BeginNewGame(uid string) error {
	if uid != g.HostUID {
		return gameerrors.ErrNotHost
	}
	if g.Phase != PhaseGameOver && g.Phase != PhaseLobby {
		return gameerrors.ErrWrongPhase
	}
	g.Phase = PhaseLobby
	g.StartVotes = nil
	g.HandID = 0
	g.TrickNumber = 0
	g.TrumpCard = nil
	g.TrumpSuit = ""
	g.Deck = nil
	g.CurrentTrick = nil
	g.WonTricks = nil
	g.PlayedCards = nil
	g.DiscardPile = nil
	g.HandEndedByFolds = false
	g.FoldWinIndex = -1
	g.WinnerIndex = -1
	g.LastHandSummary = nil
	g.SwapAnnounced = nil
	for i := range g.Players {
		g.Players[i].TricksWonThisHand = 0
		g.Players[i].Folded = false
		g.Players[i].HasSwapped = false
		g.Hands[i] = nil
	}
	g.logSystem("Back to the lobby")
	return nil
}

// UpdateSettings replaces the room rules. Host only, and only while no
// hand is running.
func (g *GameState) UpdateSettings(uid string, s Settings) error {
	if uid != g.HostUID {
		return gameerrors.ErrNotHost
	}
	if g.Phase != PhaseLobby && g.Phase != PhaseGameOver {
		return gameerrors.ErrWrongPhase
	}
	s.Clamp()
	g.Settings = s
	return nil
}

// AddChat appends a chat message from a seated player.
func (g *GameState) AddChat(uid, text string) (LogEntry, error) {
	seat := g.SeatOf(uid)
	if seat < 0 {
		return LogEntry{}, gameerrors.ErrNotInRoom
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return LogEntry{}, fmt.Errorf("empty chat message")
	}
	if len(text) > 500 {
		text = text[:500]
	}
	return g.appendLog("chat", uid, g.Players[seat].Name, text), nil
}

// ToggleLike toggles the uid's like on a log entry.
func (g *GameState) ToggleLike(uid, entryID string) error {
	if g.SeatOf(uid) < 0 {
		return gameerrors.ErrNotInRoom
	}
	for i := range g.Log {
		if g.Log[i].ID != entryID {
			continue
		}
		for j, liker := range g.Log[i].Likes {
			if liker == uid {
				g.Log[i].Likes = append(g.Log[i].Likes[:j], g.Log[i].Likes[j+1:]...)
				return nil
			}
		}
		g.Log[i].Likes = append(g.Log[i].Likes, uid)
		return nil
	}
	return fmt.Errorf("log entry not found")
}
