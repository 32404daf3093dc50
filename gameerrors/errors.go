package gameerrors

import "errors"

// Rule and room sentinel errors. Used by the game, room and ws packages
// to avoid circular imports.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrNotInRoom        = errors.New("player is not in this room")
	ErrNotHost          = errors.New("only the host can do that")
	ErrWrongPhase       = errors.New("action not allowed in this phase")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrNotEnoughPlayers = errors.New("need at least 2 players")
	ErrAlreadyVoted     = errors.New("start vote already cast")
	ErrAlreadySwapped   = errors.New("already swapped this hand")
	ErrTooManyDiscards  = errors.New("can discard at most 3 cards")
	ErrCardNotInHand    = errors.New("card is not in your hand")
	ErrMustFollowSuit   = errors.New("must follow the lead suit")
	ErrDealerCannotFold = errors.New("the dealer cannot fold")
	ErrFolded           = errors.New("player has folded this hand")
	ErrHotseatOnly      = errors.New("only hotseat rooms can add local seats")
	ErrStaleState       = errors.New("room state is stale")
)
