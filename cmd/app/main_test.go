package main

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indoornav/internal/mapping"
)

func TestResolveNode(t *testing.T) {
	m, err := mapping.NewMapper(image.Rect(0, 0, 100, 100), 0, 0, 0.1)
	require.NoError(t, err)
	nodes, err := mapping.NewNodeTable(mapping.StaticNodes{
		{ID: 0, X: 1, Y: 1},
		{ID: 1, X: 5, Y: 8},
	}, mapping.DefaultSnapRadius)
	require.NoError(t, err)

	id, err := resolveNode("1", false, m, nodes)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, err = resolveNode("7", false, m, nodes)
	assert.ErrorContains(t, err, "not in table")
	_, err = resolveNode("x", false, m, nodes)
	assert.Error(t, err)

	id, err = resolveNode("12, 88", true, m, nodes)
	require.NoError(t, err)
	assert.Equal(t, 0, id)

	_, err = resolveNode("90,50", true, m, nodes)
	assert.ErrorIs(t, err, mapping.ErrNoNearbyNode)
	_, err = resolveNode("90", true, m, nodes)
	assert.Error(t, err)
}

func TestDefaultWalkStaysInside(t *testing.T) {
	walk := defaultWalk([2]float64{-2, -1}, [2]float64{6, 3})
	require.Len(t, walk, 5)
	assert.Equal(t, walk[0], walk[4])
	for _, p := range walk {
		assert.True(t, p[0] > -2 && p[0] < 6)
		assert.True(t, p[1] > -1 && p[1] < 3)
	}
	assert.Equal(t, [2]float64{0, 0}, walk[0])
}
