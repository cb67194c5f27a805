package tombola

import (
	"math/rand"
	"sync"
	"time"
)

// Generator owns the random source used for cards and extraction orders.
// *rand.Rand is not safe for concurrent use, so calls are serialized.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// NewTimeSeededGenerator is the production constructor.
func NewTimeSeededGenerator() *Generator {
	return NewGenerator(rand.NewSource(time.Now().UnixNano()))
}

func (g *Generator) Card(v Variant) (Grid, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GenerateCard(g.rng, v)
}

func (g *Generator) ExtractionOrder(v Variant) ([]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GenerateExtractionOrder(g.rng, v.Min, v.Max)
}
