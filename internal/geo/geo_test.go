package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZeroIdentity(t *testing.T) {
	pts := []Coordinates{
		{Latitude: 0, Longitude: 0},
		{Latitude: 24.8607, Longitude: 67.0011},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 89.9, Longitude: 179.9},
	}
	for _, p := range pts {
		assert.Equal(t, 0, Distance(p, p))
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Coordinates{Latitude: 24.8607, Longitude: 67.0011}
	b := Coordinates{Latitude: 24.9056, Longitude: 67.0822}
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of latitude along a meridian is ~111.19 km.
	a := Coordinates{Latitude: 0, Longitude: 0}
	b := Coordinates{Latitude: 1, Longitude: 0}
	d := Distance(a, b)
	assert.InDelta(t, 111195, d, 30)
}

func TestDistanceTriangleOnMeridian(t *testing.T) {
	a := Coordinates{Latitude: 10.0, Longitude: 30.0}
	b := Coordinates{Latitude: 10.5, Longitude: 30.0}
	c := Coordinates{Latitude: 11.0, Longitude: 30.0}
	ac := Distance(a, c)
	sum := Distance(a, b) + Distance(b, c)
	assert.InDelta(t, ac, sum, 2)
}

func TestFormatDistanceBoundaries(t *testing.T) {
	assert.Equal(t, "0m", FormatDistance(0))
	assert.Equal(t, "999m", FormatDistance(999))
	assert.Equal(t, "1.0km", FormatDistance(1000))
	assert.Equal(t, "1.5km", FormatDistance(1500))
	assert.Equal(t, "12.3km", FormatDistance(12345))
}
