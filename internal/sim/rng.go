// Package sim implements the stochastic kernel of the engine: frequency and
// severity samplers and the Gaussian copula. Every sampling call takes an
// explicit RNG source; nothing in this package touches global random state.
package sim

import (
	"golang.org/x/exp/rand"
)

// scenarioSeedStride spaces per-scenario seeds so scenario streams never
// alias each other or the copula stream.
const scenarioSeedStride = 1000

// NewSource returns a seeded RNG source for one sampling stream.
func NewSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}

// ScenarioSeed derives the seed for the scenario at index idx from the run's
// base seed.
func ScenarioSeed(base uint64, idx int) uint64 {
	return base + uint64(idx)*scenarioSeedStride
}
