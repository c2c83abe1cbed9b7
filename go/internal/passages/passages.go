package passages

import (
	"math/rand"
	"sync"
)

// defaultPassages is the built-in pool used when no passage file is
// configured.
var defaultPassages = []string{
	"The quick brown fox jumps over the lazy dog.",
	"Programming is not about what you know; it's about what you can figure out.",
	"Success is not final, failure is not fatal: it is the courage to continue that counts.",
	"Innovation distinguishes between a leader and a follower.",
	"The only way to do great work is to love what you do.",
	"In the digital age, typing speed has become an essential skill for productivity.",
	"Technology advances rapidly, changing how we work, communicate, and interact.",
}

// Pool hands out passages for contests and solo runs. Selection is random;
// both duel participants always receive the same passage because the pick
// happens once in the core, never per client.
type Pool struct {
	mu       sync.Mutex
	passages []string
	rng      *rand.Rand
}

// NewPool creates a pool from the given passages, falling back to the
// built-in set when empty.
func NewPool(passages []string, seed int64) *Pool {
	if len(passages) == 0 {
		passages = defaultPassages
	}
	return &Pool{
		passages: passages,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Pick returns a random passage from the pool.
func (p *Pool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passages[p.rng.Intn(len(p.passages))]
}

// Size returns the number of passages in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.passages)
}
