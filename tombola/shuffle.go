package tombola

import (
	"errors"
	"fmt"
	"math/rand"
)

var ErrInvalidRange = errors.New("min must be less than or equal to max")

// GenerateExtractionOrder returns a uniform random permutation of [min, max]
// using an in-place Fisher-Yates shuffle.
func GenerateExtractionOrder(rng *rand.Rand, min, max int) ([]int, error) {
	if min > max {
		return nil, fmt.Errorf("%w: min %d, max %d", ErrInvalidRange, min, max)
	}
	order := make([]int, 0, max-min+1)
	for n := min; n <= max; n++ {
		order = append(order, n)
	}
	for i := len(order) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
