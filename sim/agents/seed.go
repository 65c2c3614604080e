package agents

import "hash/fnv"

// Noise layers of a Wanderer.
const (
	layerStepX     = "step_x"
	layerStepY     = "step_y"
	layerPlacement = "placement"
)

// layerSeed derives an isolated seed for one noise layer:
// masterSeed XOR fnv1a64(layer). The same (master, layer) always yields the
// same seed, and distinct layers never share one.
func layerSeed(master int64, layer string) int64 {
	h := fnv.New64a()
	h.Write([]byte(layer))
	return master ^ int64(h.Sum64())
}
