package holdem

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulhankin/poker"
)

const (
	numSuits = 4
	numRanks = 13
	deckSize = numSuits * numRanks
)

type card struct {
	suit int
	// 1 がエース
	rank int
	pc   poker.Card
}

func newDeck() ([]card, error) {
	deck := make([]card, 0, deckSize)
	for s := 0; s < numSuits; s++ {
		for r := 1; r <= numRanks; r++ {
			pc, err := poker.MakeCard(poker.Suit(s), poker.Rank(r))
			if err != nil {
				return nil, fmt.Errorf("card suit=%d rank=%d: %w", s, r, err)
			}
			deck = append(deck, card{suit: s, rank: r, pc: pc})
		}
	}
	return deck, nil
}

func shuffle(deck []card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// score evaluates the best five of the two hole cards and five board cards. Higher is better.
func score(hole [2]card, board []card) (int16, error) {
	if len(board) != 5 {
		return 0, fmt.Errorf("showdown needs 5 board cards, got %d", len(board))
	}
	var hand [7]poker.Card
	for i, c := range board {
		hand[i] = c.pc
	}
	hand[5] = hole[0].pc
	hand[6] = hole[1].pc
	return poker.Eval7(&hand), nil
}

func describe(hole [2]card, board []card) string {
	cards := make([]poker.Card, 0, 2+len(board))
	cards = append(cards, hole[0].pc, hole[1].pc)
	for _, c := range board {
		cards = append(cards, c.pc)
	}
	d, err := poker.Describe(cards)
	if err != nil {
		return err.Error()
	}
	return d
}
