package deck

import (
	"fmt"
	"math/rand"
)

// Suit is a single-letter suit code: C, D, H or S.
type Suit string

const (
	Clubs    Suit = "C"
	Diamonds Suit = "D"
	Hearts   Suit = "H"
	Spades   Suit = "S"
)

// Suits returns all suits in display order.
func Suits() []Suit {
	return []Suit{Clubs, Diamonds, Hearts, Spades}
}

// Rank bounds. 11=J, 12=Q, 13=K, 14=A.
const (
	MinRank = 2
	MaxRank = 14
)

// CardsPerDeck is the size of one standard deck.
const CardsPerDeck = 52

// Card is a single card in the shoe. ID is unique across decks
// (e.g. "14S_0" and "14S_1" for the ace of spades in each deck).
type Card struct {
	Suit Suit   `json:"suit"`
	Rank int    `json:"rank"`
	ID   string `json:"id"`
}

// New builds a card with its canonical ID for the given deck index.
func New(rank int, suit Suit, deckIdx int) Card {
	return Card{
		Suit: suit,
		Rank: rank,
		ID:   fmt.Sprintf("%d%s_%d", rank, suit, deckIdx),
	}
}

// BuildShoe returns an unshuffled shoe of the given number of decks (1 or 2).
func BuildShoe(decks int) []Card {
	if decks < 1 {
		decks = 1
	}
	shoe := make([]Card, 0, decks*CardsPerDeck)
	for d := 0; d < decks; d++ {
		for _, suit := range Suits() {
			for rank := MinRank; rank <= MaxRank; rank++ {
				shoe = append(shoe, New(rank, suit, d))
			}
		}
	}
	return shoe
}

// Shuffle shuffles the shoe in place using Fisher-Yates.
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// RankLabel returns the display symbol for a rank (A, K, Q, J or the number).
func RankLabel(rank int) string {
	switch rank {
	case 14:
		return "A"
	case 13:
		return "K"
	case 12:
		return "Q"
	case 11:
		return "J"
	default:
		return fmt.Sprintf("%d", rank)
	}
}

var suitSymbols = map[Suit]string{
	Clubs:    "♣",
	Diamonds: "♦",
	Hearts:   "♥",
	Spades:   "♠",
}

// Label returns the display form of a card, e.g. "A♠" or "10♥".
func Label(c Card) string {
	return RankLabel(c.Rank) + suitSymbols[c.Suit]
}

// HasSuit reports whether the hand contains at least one card of the suit.
func HasSuit(hand []Card, suit Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// IndexOf returns the position of the card with the given ID, or -1.
func IndexOf(hand []Card, cardID string) int {
	for i, c := range hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// WinningIndex returns the index (in play order) of the winning card.
// Trump cards beat everything else; otherwise only lead-suit cards can
// win. Strict rank comparison keeps the earliest play on ties, which
// matters when duplicate cards from a second deck meet in one trick.
func WinningIndex(plays []Card, lead, trump Suit) int {
	if len(plays) == 0 {
		return -1
	}
	candidate := Suit("")
	if trump != "" {
		for _, c := range plays {
			if c.Suit == trump {
				candidate = trump
				break
			}
		}
	}
	if candidate == "" {
		candidate = lead
	}
	best := -1
	for i, c := range plays {
		if c.Suit != candidate {
			continue
		}
		if best == -1 || c.Rank > plays[best].Rank {
			best = i
		}
	}
	if best == -1 {
		// No play matched lead or trump; first play stands.
		return 0
	}
	return best
}

// SortForDisplay orders a hand by suit then descending rank, in place.
func SortForDisplay(hand []Card) {
	suitOrder := map[Suit]int{Clubs: 0, Diamonds: 1, Hearts: 2, Spades: 3}
	for i := 1; i < len(hand); i++ {
		for j := i; j > 0; j-- {
			a, b := hand[j-1], hand[j]
			if suitOrder[a.Suit] < suitOrder[b.Suit] ||
				(a.Suit == b.Suit && a.Rank >= b.Rank) {
				break
			}
			hand[j-1], hand[j] = b, a
		}
	}
}
