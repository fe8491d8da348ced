package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisonPushDownOnlyWhenIndexed(t *testing.T) {
	c := &Comparison{Field: "name", Op: OpEq, Value: "John"}

	sql, ok, residual := c.PushDown(IndexSet{"name": true})
	require.True(t, ok)
	assert.Equal(t, `"name" = "John"`, sql)
	assert.Nil(t, residual)
}

func TestComparisonPushDownNotIndexedReturnsSelfAsResidual(t *testing.T) {
	c := &Comparison{Field: "name", Op: OpEq, Value: "John"}
	_, ok, residual := c.PushDown(IndexSet{})
	assert.False(t, ok)
	require.NotNil(t, residual)
	assert.Same(t, Predicate(c), residual)
}

func TestAndPartialPushDownLeavesResidual(t *testing.T) {
	a := &And{Children: []Predicate{
		&Comparison{Field: "name", Op: OpEq, Value: "John"},
		&Comparison{Field: "age", Op: OpGt, Value: int64(10)},
	}}
	sql, ok, residual := a.PushDown(IndexSet{"name": true})
	require.True(t, ok)
	assert.Equal(t, `"name" = "John"`, sql)
	require.NotNil(t, residual)

	residualAnd, isAnd := residual.(*And)
	require.True(t, isAnd)
	assert.Len(t, residualAnd.Children, 1)
}

func TestAndFullPushDownHasNoResidual(t *testing.T) {
	a := &And{Children: []Predicate{
		&Comparison{Field: "age", Op: OpGt, Value: int64(18)},
		&Comparison{Field: "age", Op: OpLt, Value: int64(42)},
	}}
	sql, ok, residual := a.PushDown(IndexSet{"age": true})
	require.True(t, ok)
	assert.Contains(t, sql, `"age" > 18`)
	assert.Contains(t, sql, `"age" < 42`)
	assert.Contains(t, sql, " AND ")
	assert.Nil(t, residual)
}

func TestOrRequiresEveryChildFullyPushed(t *testing.T) {
	o := &Or{Children: []Predicate{
		&Comparison{Field: "name", Op: OpEq, Value: "Mario"},
		&And{Children: []Predicate{
			&Comparison{Field: "age", Op: OpGt, Value: int64(18)},
			&Comparison{Field: "age", Op: OpLt, Value: int64(42)},
		}},
	}}

	// age is not indexed: the And branch can't fully push, so the whole Or stays residual.
	_, ok, residual := o.PushDown(IndexSet{"name": true})
	assert.False(t, ok)
	assert.Same(t, Predicate(o), residual)

	// Once both fields are indexed, every branch fully pushes.
	sql, ok, residual := o.PushDown(IndexSet{"name": true, "age": true})
	require.True(t, ok)
	assert.Nil(t, residual)
	assert.Contains(t, sql, "OR")
}

func TestFormatLiteralEscapesQuotesAndFormatsNumbers(t *testing.T) {
	assert.Equal(t, `"Bakery ""Bob"" Cumbersome"`, formatLiteral(`Bakery "Bob" Cumbersome`))
	assert.Equal(t, "42", formatLiteral(int64(42)))
	assert.Equal(t, "true", formatLiteral(true))
	assert.Equal(t, "NULL", formatLiteral(nil))
}
