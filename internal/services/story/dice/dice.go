// Package dice implements numeric dice rolling for roll requests.
//
// Results are numeric only; interpreting success or failure is left to the
// people at the table.
package dice

import (
	"errors"
	"math/rand"
)

// ErrMissingDice indicates a roll request had no dice specified.
var ErrMissingDice = errors.New("at least one die must be provided")

// ErrInvalidDiceSpec indicates a die specification has invalid fields.
var ErrInvalidDiceSpec = errors.New("dice must have positive sides and count")

// DiceSpec describes a die to roll and how many times to roll it.
type DiceSpec struct {
	Sides int `json:"sides"`
	Count int `json:"count"`
}

// DieRoll captures the results for a single dice spec.
type DieRoll struct {
	Sides   int   `json:"sides"`
	Results []int `json:"results"`
	Total   int   `json:"total"`
}

// RollRequest describes a request to roll one or more dice.
type RollRequest struct {
	Dice []DiceSpec
	Seed int64
}

// RollResult captures the results from rolling multiple dice.
type RollResult struct {
	Rolls []DieRoll `json:"rolls"`
	Total int       `json:"total"`
}

// RollDice rolls dice based on the provided request.
//
// RollDice is deterministic with respect to the Seed field on RollRequest.
// Given the same Seed and the same Dice slice (including order and values),
// RollDice will always produce the same RollResult.
//
// Dice specs are processed in slice order and the resulting DieRoll entries
// appear in the same order. Each DieRoll.Total is the sum of its Results;
// RollResult.Total is the sum of every die rolled in the request.
func RollDice(request RollRequest) (RollResult, error) {
	if len(request.Dice) == 0 {
		return RollResult{}, ErrMissingDice
	}

	rng := rand.New(rand.NewSource(request.Seed))
	rolls := make([]DieRoll, 0, len(request.Dice))
	total := 0

	for _, spec := range request.Dice {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return RollResult{}, ErrInvalidDiceSpec
		}

		results := make([]int, spec.Count)
		rollTotal := 0
		for i := 0; i < spec.Count; i++ {
			value := rollDie(rng, spec.Sides)
			results[i] = value
			rollTotal += value
		}

		rolls = append(rolls, DieRoll{
			Sides:   spec.Sides,
			Results: results,
			Total:   rollTotal,
		})
		total += rollTotal
	}

	return RollResult{
		Rolls: rolls,
		Total: total,
	}, nil
}

func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}
