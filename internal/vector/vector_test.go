package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSub(t *testing.T) {
	got := Sub(Vec3{5, 7, 9}, Vec3{1, 2, 3})
	assert.Equal(t, Vec3{4, 5, 6}, got)
}

func TestMag(t *testing.T) {
	assert.InDelta(t, 5.0, Mag(Vec3{3, 4, 0}), 1e-12)
	assert.InDelta(t, 13.0, Mag(Vec3{3, 4, 12}), 1e-12)
	assert.Equal(t, 0.0, Mag(Vec3{}))
}

func TestCross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}

	assert.Equal(t, Vec3{0, 0, 1}, x.Cross(y))
	assert.Equal(t, Vec3{0, 0, -1}, y.Cross(x))
}

func TestDotAndScale(t *testing.T) {
	v := Vec3{1, 2, 3}
	assert.Equal(t, 14.0, v.Dot(v))
	assert.Equal(t, Vec3{2, 4, 6}, v.Scale(2))
	assert.Equal(t, Vec3{2, 4, 6}, v.Add(v))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, Vec3{1, 2, 3}.IsFinite())
	assert.False(t, Vec3{math.NaN(), 0, 0}.IsFinite())
	assert.False(t, Vec3{0, math.Inf(1), 0}.IsFinite())
}
