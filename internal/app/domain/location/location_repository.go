package location

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/models"
	"github.com/wanderer-app/wanderer/internal/app/observability/metrics"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	// Location history
	CreateLocationHistory(ctx context.Context, history *models.LocationHistory) error
	GetLocationHistory(ctx context.Context, userID string, limit, offset int) ([]models.LocationHistory, error)
	GetLocationHistoryByTimeRange(ctx context.Context, userID string, start, end time.Time) ([]models.LocationHistory, error)

	// POI interactions
	CreatePOIInteraction(ctx context.Context, interaction *models.POIInteraction) error
	GetPOIInteractionStats(ctx context.Context, userID string) (map[string]int, error)

	// Saved places
	SavePlace(ctx context.Context, place *models.SavedPlace) error
	ListSavedPlaces(ctx context.Context, userID string) ([]models.SavedPlace, error)
	DeleteSavedPlace(ctx context.Context, userID, placeID string) error
}

type RepositoryImpl struct {
	db     DB
	logger *zap.Logger
	sb     sq.StatementBuilderType
}

func NewRepository(db DB, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepositoryImpl{
		db:     db,
		logger: logger,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// dbErr counts failed statements before handing the error back.
func (r *RepositoryImpl) dbErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if m := metrics.Get(); m != nil {
		m.DBQueryErrorsTotal.Add(ctx, 1)
	}
	return err
}

func (r *RepositoryImpl) CreateLocationHistory(ctx context.Context, history *models.LocationHistory) error {
	if history.ID == "" {
		history.ID = uuid.New().String()
	}
	now := time.Now()
	if history.Timestamp.IsZero() {
		history.Timestamp = now
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = now
	}

	query, args, err := r.sb.
		Insert("location_history").
		Columns("id", "user_id", "latitude", "longitude", "accuracy", "place_name", "source", "timestamp", "created_at").
		Values(history.ID, history.UserID, history.Latitude, history.Longitude,
			history.Accuracy, history.PlaceName, history.Source, history.Timestamp, history.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return r.dbErr(ctx, err)
}

func (r *RepositoryImpl) GetLocationHistory(ctx context.Context, userID string, limit, offset int) ([]models.LocationHistory, error) {
	query, args, err := r.sb.
		Select("id", "user_id", "latitude", "longitude", "accuracy", "place_name", "source", "timestamp", "created_at").
		From("location_history").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("timestamp DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.dbErr(ctx, err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

func (r *RepositoryImpl) GetLocationHistoryByTimeRange(ctx context.Context, userID string, start, end time.Time) ([]models.LocationHistory, error) {
	query, args, err := r.sb.
		Select("id", "user_id", "latitude", "longitude", "accuracy", "place_name", "source", "timestamp", "created_at").
		From("location_history").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"timestamp": start}).
		Where(sq.LtOrEq{"timestamp": end}).
		OrderBy("timestamp DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.dbErr(ctx, err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

func scanHistory(rows pgx.Rows) ([]models.LocationHistory, error) {
	var histories []models.LocationHistory
	for rows.Next() {
		var h models.LocationHistory
		if err := rows.Scan(
			&h.ID,
			&h.UserID,
			&h.Latitude,
			&h.Longitude,
			&h.Accuracy,
			&h.PlaceName,
			&h.Source,
			&h.Timestamp,
			&h.CreatedAt,
		); err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

func (r *RepositoryImpl) CreatePOIInteraction(ctx context.Context, interaction *models.POIInteraction) error {
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	now := time.Now()
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = now
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = now
	}

	query, args, err := r.sb.
		Insert("poi_interactions").
		Columns("id", "user_id", "poi_id", "poi_name", "poi_category", "interaction_type",
			"user_latitude", "user_longitude", "poi_latitude", "poi_longitude",
			"distance", "timestamp", "created_at").
		Values(interaction.ID, interaction.UserID, interaction.POIID, interaction.POIName,
			interaction.POICategory, interaction.InteractionType,
			interaction.UserLatitude, interaction.UserLongitude,
			interaction.POILatitude, interaction.POILongitude,
			interaction.Distance, interaction.Timestamp, interaction.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return r.dbErr(ctx, err)
}

func (r *RepositoryImpl) GetPOIInteractionStats(ctx context.Context, userID string) (map[string]int, error) {
	query, args, err := r.sb.
		Select("poi_category", "COUNT(*) AS count").
		From("poi_interactions").
		Where(sq.Eq{"user_id": userID}).
		GroupBy("poi_category").
		OrderBy("count DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.dbErr(ctx, err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats[category] = count
	}
	return stats, rows.Err()
}

func (r *RepositoryImpl) SavePlace(ctx context.Context, place *models.SavedPlace) error {
	if place.ID == "" {
		place.ID = uuid.New().String()
	}
	if place.CreatedAt.IsZero() {
		place.CreatedAt = time.Now()
	}

	query, args, err := r.sb.
		Insert("saved_places").
		Columns("id", "user_id", "name", "category", "latitude", "longitude", "icon", "created_at").
		Values(place.ID, place.UserID, place.Name, place.Category,
			place.Latitude, place.Longitude, place.Icon, place.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return r.dbErr(ctx, err)
}

func (r *RepositoryImpl) ListSavedPlaces(ctx context.Context, userID string) ([]models.SavedPlace, error) {
	query, args, err := r.sb.
		Select("id", "user_id", "name", "category", "latitude", "longitude", "icon", "created_at").
		From("saved_places").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.dbErr(ctx, err)
	}
	defer rows.Close()

	var places []models.SavedPlace
	for rows.Next() {
		var p models.SavedPlace
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Name,
			&p.Category,
			&p.Latitude,
			&p.Longitude,
			&p.Icon,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

func (r *RepositoryImpl) DeleteSavedPlace(ctx context.Context, userID, placeID string) error {
	query, args, err := r.sb.
		Delete("saved_places").
		Where(sq.Eq{"user_id": userID, "id": placeID}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return r.dbErr(ctx, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
