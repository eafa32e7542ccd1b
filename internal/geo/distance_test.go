package geo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maptrack/maptrack/internal/tracking"
)

func TestDistance_SamePointIsZero(t *testing.T) {
	t.Parallel()

	p := tracking.Coords{Lat: 55.7558, Lon: 37.6173}
	require.InDelta(t, 0, Distance(p, p), 1e-9)
}

func TestDistance_Symmetric(t *testing.T) {
	t.Parallel()

	moscow := tracking.Coords{Lat: 55.7558, Lon: 37.6173}
	novosibirsk := tracking.Coords{Lat: 55.0084, Lon: 82.9357}

	require.InDelta(t, Distance(moscow, novosibirsk), Distance(novosibirsk, moscow), 1e-9)
}

func TestDistance_KnownPair(t *testing.T) {
	t.Parallel()

	moscow := tracking.Coords{Lat: 55.7558, Lon: 37.6173}
	spb := tracking.Coords{Lat: 59.9343, Lon: 30.3351}

	// Moscow to Saint Petersburg is roughly 635 km.
	d := Distance(moscow, spb)
	require.InDelta(t, 635, d, 10)
}
