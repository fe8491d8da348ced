package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualCrossesIntAndFloat(t *testing.T) {
	assert.True(t, Equal(int64(10), 10.0))
	assert.True(t, Equal(10.0, int64(10)))
	assert.False(t, Equal(int64(10), 10.5))
}

func TestEqualNullOnlyEqualsNull(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, int64(0)))
	assert.False(t, Equal(int64(0), nil))
}

func TestEqualStructural(t *testing.T) {
	a := []any{int64(1), "x"}
	b := []any{int64(1), "x"}
	assert.True(t, Equal(a, b))

	c := []any{int64(1), "y"}
	assert.False(t, Equal(a, c))
}

func TestCompareNumericOrdering(t *testing.T) {
	assert.Equal(t, -1, Compare(int64(10), int64(20)))
	assert.Equal(t, 1, Compare(int64(30), int64(20)))
	assert.Equal(t, 0, Compare(int64(20), 20.0))
}

func TestCompareStringOrdering(t *testing.T) {
	assert.Equal(t, -1, Compare("John", "Poopy"))
	assert.Equal(t, 1, Compare("Poopy", "John"))
}

func TestCompareAcrossTagsIsTotal(t *testing.T) {
	// null < bool < number < string, never errors.
	assert.Equal(t, -1, Compare(nil, false))
	assert.Equal(t, -1, Compare(false, int64(0)))
	assert.Equal(t, -1, Compare(int64(0), "0"))
}
