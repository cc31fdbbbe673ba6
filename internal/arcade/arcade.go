// Package arcade implements the skill mini-games layered on the economy:
// deterministic bot opponents and seeded card puzzles. All outcomes derive
// from a seed through rng.Stream, so the server can re-verify any round
// without storing the generated artifacts.
package arcade

import (
	"errors"
	"fmt"

	"pricehunt/internal/rng"
)

var (
	ErrNoLegalMoves = errors.New("no legal moves")
	ErrBadDeal      = errors.New("invalid deal request")
)

var suits = []string{"spades", "hearts", "diamonds", "clubs"}

type Card struct {
	Rank int    `json:"rank"` // 1..13
	Suit string `json:"suit"`
}

// BotMove picks the bot's move for one round. The same (seed, round, moves)
// always yields the same pick, which is what makes rooms replayable.
func BotMove(seed string, round int, legal []string) (string, error) {
	if len(legal) == 0 {
		return "", ErrNoLegalMoves
	}
	s := rng.NewStream(fmt.Sprintf("%s#round-%d", seed, round))
	return legal[s.IntN(len(legal))], nil
}

// DealCards generates a puzzle sequence of n cards from the seed.
func DealCards(seed string, n int) ([]Card, error) {
	if n <= 0 || n > 52 {
		return nil, ErrBadDeal
	}
	s := rng.NewStream("deal:" + seed)
	deck := make([]Card, 0, 52)
	for _, suit := range suits {
		for rank := 1; rank <= 13; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	s.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck[:n], nil
}

// VerifyDeal checks a submitted sequence against what the seed produces.
// The seed is the source of truth; clients cannot forge a favorable deal.
func VerifyDeal(seed string, claimed []Card) bool {
	expected, err := DealCards(seed, len(claimed))
	if err != nil {
		return false
	}
	for i := range expected {
		if expected[i] != claimed[i] {
			return false
		}
	}
	return true
}
