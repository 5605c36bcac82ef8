package location

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_known.json")

	s := NewStore(path, nil)
	require.Nil(t, s.LastKnown())

	name := "Lisbon, Portugal"
	loc := models.ResolvedLocation{
		Coordinate: models.Coordinate{Latitude: 38.7223, Longitude: -9.1393},
		PlaceName:  &name,
		ResolvedAt: time.Now().Truncate(time.Second),
	}
	s.SetLastKnown(loc)

	// A fresh store against the same file sees the persisted slot.
	s2 := NewStore(path, nil)
	got := s2.LastKnown()
	require.NotNil(t, got)
	assert.Equal(t, loc.Coordinate, got.Coordinate)
	require.NotNil(t, got.PlaceName)
	assert.Equal(t, name, *got.PlaceName)
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore("", nil)
	s.SetLastKnown(models.ResolvedLocation{
		Coordinate: models.Coordinate{Latitude: 1, Longitude: 2},
	})

	first := s.LastKnown()
	first.Stale = true
	first.Coordinate.Latitude = 99

	second := s.LastKnown()
	assert.False(t, second.Stale)
	assert.Equal(t, 1.0, second.Coordinate.Latitude)
}

func TestStoreSessionGate(t *testing.T) {
	s := NewStore("", nil)
	assert.Nil(t, s.SessionLocation())

	loc := models.ResolvedLocation{
		Coordinate: models.Coordinate{Latitude: 35.6762, Longitude: 139.6503},
	}
	s.MarkSession(loc)
	require.NotNil(t, s.SessionLocation())

	s.ClearSession()
	assert.Nil(t, s.SessionLocation())
}

func TestStoreReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_known.json")
	s := NewStore(path, nil)
	s.SetLastKnown(models.ResolvedLocation{
		Coordinate: models.Coordinate{Latitude: 1, Longitude: 2},
	})
	s.MarkSession(models.ResolvedLocation{})

	s.Reset()
	assert.Nil(t, s.LastKnown())
	assert.Nil(t, s.SessionLocation())

	// The file is gone too, so a new store starts empty.
	assert.Nil(t, NewStore(path, nil).LastKnown())
}

func TestStoreIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_known.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	s := NewStore(path, nil)
	assert.Nil(t, s.LastKnown())
}

func TestStoreAge(t *testing.T) {
	s := NewStore("", nil)
	assert.Negative(t, s.Age(time.Now()))

	resolvedAt := time.Now().Add(-2 * time.Hour)
	s.SetLastKnown(models.ResolvedLocation{ResolvedAt: resolvedAt})
	age := s.Age(time.Now())
	assert.InDelta(t, (2 * time.Hour).Seconds(), age.Seconds(), 5)
}
