package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayerSeed_DeterministicAndIsolated(t *testing.T) {
	// Same inputs, same seed
	assert.Equal(t, layerSeed(42, layerStepX), layerSeed(42, layerStepX))

	// Distinct layers of one master never collide
	seeds := map[int64]string{}
	for _, layer := range []string{layerStepX, layerStepY, layerPlacement} {
		s := layerSeed(42, layer)
		_, dup := seeds[s]
		assert.False(t, dup, "layer %s reuses a seed", layer)
		seeds[s] = layer
	}

	// Neighbouring masters do not alias each other's layers
	assert.NotEqual(t, layerSeed(1, layerStepY), layerSeed(2, layerStepX))
}
