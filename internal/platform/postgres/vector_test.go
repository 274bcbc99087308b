package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorLiteral(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[0.5,-1,2.25]", vectorLiteral([]float32{0.5, -1, 2.25}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}

func TestParseVector(t *testing.T) {
	t.Parallel()

	got, err := parseVector("[0.5,-1,2.25]")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2.25}, got)

	got, err = parseVector(" [1, 2, 3] ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got)

	got, err = parseVector("[]")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseVector("1,2,3")
	assert.Error(t, err)

	_, err = parseVector("[1,x,3]")
	assert.Error(t, err)
}

func TestVectorRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0.123456, -0.987654, 42}
	out, err := parseVector(vectorLiteral(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
