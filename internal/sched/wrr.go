package sched

import "github.com/rxh-proxy/rxh/internal/ring"

// weightedRoundRobin serves each backend proportionally to its declared
// weight by pre-expanding the backend list into a repeated cycle — address
// 8081 with weight 3 appears three times in the cycle — then walking that
// cycle with a Ring. This trades a little memory (sum of weights, not
// count of backends) for an O(1), allocation-free NextServer call.
type weightedRoundRobin struct {
	cycle *ring.Ring[string]
}

func newWeightedRoundRobin(backends []Backend) *weightedRoundRobin {
	var cycle []string
	for _, b := range backends {
		weight := b.Weight
		if weight <= 0 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			cycle = append(cycle, b.Address)
		}
	}
	return &weightedRoundRobin{cycle: ring.New(cycle)}
}

func (w *weightedRoundRobin) NextServer() string {
	return w.cycle.Next()
}
