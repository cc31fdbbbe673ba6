package arcade

import "testing"

func TestBotMoveDeterministic(t *testing.T) {
	legal := []string{"rock", "paper", "scissors"}
	first, err := BotMove("room-42", 3, legal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := BotMove("room-42", 3, legal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("replayed move %q differs from %q", again, first)
		}
	}
}

func TestBotMoveVariesAcrossRounds(t *testing.T) {
	legal := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	seen := map[string]bool{}
	for round := 0; round < 32; round++ {
		move, err := BotMove("room-7", round, legal)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		seen[move] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected different moves across rounds, got %v", seen)
	}
}

func TestBotMoveNoLegalMoves(t *testing.T) {
	if _, err := BotMove("x", 0, nil); err != ErrNoLegalMoves {
		t.Fatalf("expected ErrNoLegalMoves, got %v", err)
	}
}

func TestDealAndVerify(t *testing.T) {
	cards, err := DealCards("puzzle-9", 5)
	if err != nil {
		t.Fatalf("deal failed: %v", err)
	}
	if len(cards) != 5 {
		t.Fatalf("expected 5 cards, got %d", len(cards))
	}
	if !VerifyDeal("puzzle-9", cards) {
		t.Fatalf("genuine deal failed verification")
	}

	forged := make([]Card, len(cards))
	copy(forged, cards)
	forged[0].Rank = forged[0].Rank%13 + 1
	if VerifyDeal("puzzle-9", forged) {
		t.Fatalf("forged deal passed verification")
	}
	if VerifyDeal("other-seed", cards) {
		t.Fatalf("deal verified against the wrong seed")
	}
}

func TestDealNoDuplicates(t *testing.T) {
	cards, err := DealCards("dup-check", 52)
	if err != nil {
		t.Fatalf("deal failed: %v", err)
	}
	seen := map[Card]bool{}
	for _, c := range cards {
		if seen[c] {
			t.Fatalf("duplicate card %v", c)
		}
		seen[c] = true
	}
}
