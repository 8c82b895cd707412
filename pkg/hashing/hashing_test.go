package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadHashFieldOrderIndependent(t *testing.T) {
	a := map[string]interface{}{
		"base_price":  100.0,
		"distance_km": 50.0,
		"vehicle_type": "sedan",
	}
	b := map[string]interface{}{
		"vehicle_type": "sedan",
		"distance_km": 50.0,
		"base_price":  100.0,
	}

	hashA, err := PayloadHash(a)
	require.NoError(t, err)
	hashB, err := PayloadHash(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
}

func TestPayloadHashStructMatchesMap(t *testing.T) {
	type req struct {
		BasePrice  float64 `json:"base_price"`
		DistanceKm float64 `json:"distance_km"`
	}

	fromStruct, err := PayloadHash(req{BasePrice: 10, DistanceKm: 20})
	require.NoError(t, err)
	fromMap, err := PayloadHash(map[string]float64{
		"distance_km": 20,
		"base_price":  10,
	})
	require.NoError(t, err)

	assert.Equal(t, fromStruct, fromMap)
}

func TestPayloadHashDistinctContent(t *testing.T) {
	hashA, err := PayloadHash(map[string]int{"a": 1})
	require.NoError(t, err)
	hashB, err := PayloadHash(map[string]int{"a": 2})
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

func TestPayloadHashUnserializable(t *testing.T) {
	_, err := PayloadHash(map[string]interface{}{"fn": func() {}})
	assert.Error(t, err)
}
