package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

func newMockRepo(t *testing.T) (Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock, nil), mock
}

func TestCreateLocationHistory(t *testing.T) {
	repo, mock := newMockRepo(t)

	accuracy := 12.5
	place := "Lisbon, Portugal"
	history := &models.LocationHistory{
		UserID:    "user-1",
		Latitude:  38.7223,
		Longitude: -9.1393,
		Accuracy:  &accuracy,
		PlaceName: &place,
		Source:    "device",
	}

	mock.ExpectExec("INSERT INTO location_history").
		WithArgs(pgxmock.AnyArg(), "user-1", 38.7223, -9.1393,
			&accuracy, &place, "device", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateLocationHistory(context.Background(), history)
	require.NoError(t, err)
	assert.NotEmpty(t, history.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLocationHistory(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "latitude", "longitude", "accuracy",
		"place_name", "source", "timestamp", "created_at",
	}).AddRow("h1", "user-1", 38.7223, -9.1393, (*float64)(nil),
		(*string)(nil), "ip", now, now)

	mock.ExpectQuery("SELECT .+ FROM location_history").
		WithArgs("user-1").
		WillReturnRows(rows)

	histories, err := repo.GetLocationHistory(context.Background(), "user-1", 20, 0)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	assert.Equal(t, "h1", histories[0].ID)
	assert.Equal(t, "ip", histories[0].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLocationHistoryByTimeRange(t *testing.T) {
	repo, mock := newMockRepo(t)

	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "latitude", "longitude", "accuracy",
		"place_name", "source", "timestamp", "created_at",
	})

	mock.ExpectQuery("SELECT .+ FROM location_history").
		WithArgs("user-1", start, end).
		WillReturnRows(rows)

	histories, err := repo.GetLocationHistoryByTimeRange(context.Background(), "user-1", start, end)
	require.NoError(t, err)
	assert.Empty(t, histories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePOIInteraction(t *testing.T) {
	repo, mock := newMockRepo(t)

	interaction := &models.POIInteraction{
		UserID:          "user-1",
		POIID:           "node/123",
		POIName:         "Meiji Shrine",
		POICategory:     "attraction",
		InteractionType: "click",
		UserLatitude:    35.6762,
		UserLongitude:   139.6503,
		POILatitude:     35.6764,
		POILongitude:    139.6505,
		Distance:        28.4,
	}

	mock.ExpectExec("INSERT INTO poi_interactions").
		WithArgs(pgxmock.AnyArg(), "user-1", "node/123", "Meiji Shrine", "attraction", "click",
			35.6762, 139.6503, 35.6764, 139.6505, 28.4,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreatePOIInteraction(context.Background(), interaction))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPOIInteractionStats(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := pgxmock.NewRows([]string{"poi_category", "count"}).
		AddRow("food", 7).
		AddRow("attraction", 3)

	mock.ExpectQuery("SELECT poi_category, COUNT").
		WithArgs("user-1").
		WillReturnRows(rows)

	stats, err := repo.GetPOIInteractionStats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"food": 7, "attraction": 3}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAndListSavedPlaces(t *testing.T) {
	repo, mock := newMockRepo(t)

	place := &models.SavedPlace{
		UserID:    "user-1",
		Name:      "Yoyogi Park",
		Category:  "leisure",
		Latitude:  35.6790,
		Longitude: 139.6520,
		Icon:      "🌳",
	}

	mock.ExpectExec("INSERT INTO saved_places").
		WithArgs(pgxmock.AnyArg(), "user-1", "Yoyogi Park", "leisure",
			35.6790, 139.6520, "🌳", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.SavePlace(context.Background(), place))

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "name", "category", "latitude", "longitude", "icon", "created_at",
	}).AddRow(place.ID, "user-1", "Yoyogi Park", "leisure", 35.6790, 139.6520, "🌳", now)

	mock.ExpectQuery("SELECT .+ FROM saved_places").
		WithArgs("user-1").
		WillReturnRows(rows)

	places, err := repo.ListSavedPlaces(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Yoyogi Park", places[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSavedPlaceNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM saved_places").
		WithArgs("missing", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteSavedPlace(context.Background(), "user-1", "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
