package brackets

import (
	"fmt"
	"math"

	"github.com/Dosada05/lunch-roulette/models"
)

const finalLabel = "final"

// RoundSize returns the smallest power of two >= participants.
func RoundSize(participants int) int {
	if participants <= 1 {
		return 1
	}
	numRounds := int(math.Ceil(math.Log2(float64(participants))))
	return 1 << uint(numRounds)
}

// RoundLabel names a round by its bracket size, e.g. 5 participants -> "round of 8".
func RoundLabel(participants int) string {
	if participants == 2 {
		return finalLabel
	}
	return fmt.Sprintf("round of %d", RoundSize(participants))
}

// DescribeRound reports the shape of a round with k active participants.
func DescribeRound(k int) models.RoundInfo {
	return models.RoundInfo{
		Participants: k,
		Size:         RoundSize(k),
		Label:        RoundLabel(k),
		IsFinal:      k == 2,
		Matches:      k / 2,
		HasBye:       k%2 == 1,
	}
}

// PlanRounds projects every round for a field of n. Each round plays k/2
// matches and, when k is odd, passes the trailing participant through as a
// bye, so the matches across all rounds always add up to n-1.
func PlanRounds(n int) []models.RoundInfo {
	if n < 2 {
		return []models.RoundInfo{}
	}
	rounds := make([]models.RoundInfo, 0, int(math.Ceil(math.Log2(float64(n)))))
	for k := n; k > 1; k = k/2 + k%2 {
		rounds = append(rounds, DescribeRound(k))
	}
	return rounds
}
