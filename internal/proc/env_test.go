package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpolateSimpleVar(t *testing.T) {
	out, err := Interpolate("path=$(HOME)/bin", map[string]string{"HOME": "/home/u"})
	require.NoError(t, err)
	require.Equal(t, "path=/home/u/bin", out)
}

func TestInterpolateLiteralDollar(t *testing.T) {
	out, err := Interpolate("price is $$5", nil)
	require.NoError(t, err)
	require.Equal(t, "price is $5", out)
}

func TestInterpolateNestedParens(t *testing.T) {
	out, err := Interpolate("$(OUTER(INNER))", map[string]string{"OUTER(INNER)": "v"})
	require.NoError(t, err)
	require.Equal(t, "v", out)
}

func TestInterpolateMissingVarBlank(t *testing.T) {
	out, err := Interpolate("$(NOPE)x", map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "x", out)
}

func TestInterpolateNoUnescapedDollarParenRemains(t *testing.T) {
	env := map[string]string{"A": "1", "B": "2"}
	inputs := []string{"$(A)-$(B)", "literal $$ then $(A)", "no vars here"}
	for _, in := range inputs {
		out, err := Interpolate(in, env)
		require.NoError(t, err)
		require.NotContains(t, out, "$(")
	}
}

func TestInterpolateMissingClosingParenErrors(t *testing.T) {
	_, err := Interpolate("$(UNCLOSED", nil)
	require.Error(t, err)
}
