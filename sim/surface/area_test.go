package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSquareArea_Classify(t *testing.T) {
	a := NewSquareArea(V(0, 0), 10)
	tests := []struct {
		name string
		p    Vec2
		want Direction
	}{
		{"origin corner is inside", V(0, 0), Inside},
		{"interior", V(5, 5), Inside},
		{"right edge belongs to the next tile", V(10, 5), Right},
		{"bottom edge belongs to the next tile", V(5, 10), Down},
		{"left", V(-0.1, 5), Left},
		{"up", V(5, -3), Up},
		{"diagonal down-right resolves horizontally first", V(15, 15), Right},
		{"diagonal up-left resolves horizontally first", V(-1, -1), Left},
		{"diagonal corner point", V(10, 10), Right},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Classify(tt.p))
		})
	}
}

func TestSquareArea_DistanceTo(t *testing.T) {
	a := NewSquareArea(V(0, 0), 10)
	assert.Equal(t, 0.0, a.DistanceTo(V(3, 3)))
	assert.Equal(t, 2.0, a.DistanceTo(V(-2, 5)))
	assert.Equal(t, 5.0, a.DistanceTo(V(13, 14)))
	assert.Equal(t, 10.0, a.Side())
}

func TestDirection_Opposite(t *testing.T) {
	assert.Equal(t, Down, Up.Opposite())
	assert.Equal(t, Up, Down.Opposite())
	assert.Equal(t, Right, Left.Opposite())
	assert.Equal(t, Left, Right.Opposite())
	assert.PanicsWithError(t, "unknown direction: no opposite of inside", func() { Inside.Opposite() })
	assert.Panics(t, func() { Direction(9).border() })
	assert.Equal(t, "Direction(9)", Direction(9).String())
}
