package dice

import (
	"errors"
	"testing"
)

func TestRollDice_DeterministicForSeed(t *testing.T) {
	req := RollRequest{
		Dice: []DiceSpec{
			{Sides: 6, Count: 2},
			{Sides: 8, Count: 1},
		},
		Seed: 42,
	}

	first, err := RollDice(req)
	if err != nil {
		t.Fatalf("roll dice: %v", err)
	}
	second, err := RollDice(req)
	if err != nil {
		t.Fatalf("roll dice: %v", err)
	}

	if len(first.Rolls) != 2 {
		t.Fatalf("expected 2 die rolls, got %d", len(first.Rolls))
	}
	if first.Total != second.Total {
		t.Fatalf("totals differ for same seed: %d vs %d", first.Total, second.Total)
	}
	for i := range first.Rolls {
		if first.Rolls[i].Total != second.Rolls[i].Total {
			t.Fatalf("roll %d differs for same seed", i)
		}
	}
}

func TestRollDice_ResultsWithinBounds(t *testing.T) {
	result, err := RollDice(RollRequest{
		Dice: []DiceSpec{{Sides: 20, Count: 10}},
		Seed: 7,
	})
	if err != nil {
		t.Fatalf("roll dice: %v", err)
	}

	roll := result.Rolls[0]
	if len(roll.Results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(roll.Results))
	}
	sum := 0
	for _, value := range roll.Results {
		if value < 1 || value > 20 {
			t.Fatalf("die result %d out of range", value)
		}
		sum += value
	}
	if roll.Total != sum {
		t.Fatalf("roll total = %d, want %d", roll.Total, sum)
	}
	if result.Total != sum {
		t.Fatalf("result total = %d, want %d", result.Total, sum)
	}
}

func TestRollDice_RejectsEmptyRequest(t *testing.T) {
	_, err := RollDice(RollRequest{Seed: 1})
	if !errors.Is(err, ErrMissingDice) {
		t.Fatalf("expected ErrMissingDice, got %v", err)
	}
}

func TestRollDice_RejectsInvalidSpec(t *testing.T) {
	cases := []DiceSpec{
		{Sides: 0, Count: 1},
		{Sides: 6, Count: 0},
		{Sides: -4, Count: 2},
	}
	for _, spec := range cases {
		_, err := RollDice(RollRequest{Dice: []DiceSpec{spec}, Seed: 1})
		if !errors.Is(err, ErrInvalidDiceSpec) {
			t.Fatalf("spec %+v: expected ErrInvalidDiceSpec, got %v", spec, err)
		}
	}
}
