package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/geo"
)

// PlacesRepository is the read side of the place catalogue used by the
// aggregation pipeline.
type PlacesRepository interface {
	// WithinRadius returns places strictly closer than radius metres to center.
	WithinRadius(ctx context.Context, center geo.Point, radius float64) ([]entity.NearbyPlace, error)
	// FindMirrors returns the local mirrors of the given OSM node ids.
	FindMirrors(ctx context.Context, osmIDs []int64) (map[int64]entity.Mirror, error)
	// AverageRatings returns the mean review stars per place id for source.
	AverageRatings(ctx context.Context, source entity.Source, ids []int64) (map[int64]float64, error)
}

type pgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGXPlacesRepository implements PlacesRepository on PostGIS using pgx.
type PGXPlacesRepository struct {
	pool pgxPool
}

// NewPGXPlacesRepository wires a pgx backed repository.
func NewPGXPlacesRepository(pool *pgxpool.Pool) *PGXPlacesRepository {
	return &PGXPlacesRepository{pool: pool}
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// Distances use the sphere so they agree with geo.Distance.
const withinRadiusQuery = `
    WITH origin AS (
        SELECT ST_SetSRID(ST_MakePoint($1::float8, $2::float8), 4326)::geography AS point
    )
    SELECT
        p.id,
        p.name,
        ST_X(p.location::geometry),
        ST_Y(p.location::geometry),
        EXTRACT(EPOCH FROM p.duration)::float8,
        p.wheelchair,
        p.bike_friendly,
        p.family_friendly,
        p.friends_friendly,
        ARRAY(
            SELECT c.name
            FROM place_categories pc
            JOIN categories c ON c.id = pc.category_id
            WHERE pc.place_id = p.id
            ORDER BY c.name
        ) AS categories,
        (
            SELECT AVG(r.stars)::float8
            FROM visits v
            JOIN reviews r ON r.visit_id = v.id
            WHERE v.place_source = 'roamium' AND v.place_id = p.id
        ) AS rating,
        ST_Distance(p.location, origin.point, false) AS distance
    FROM places p, origin
    WHERE ST_DWithin(p.location, origin.point, $3, false)
      AND ST_Distance(p.location, origin.point, false) < $3
    ORDER BY p.id`

// WithinRadius runs a spherical radius query around center.
func (r *PGXPlacesRepository) WithinRadius(ctx context.Context, center geo.Point, radius float64) ([]entity.NearbyPlace, error) {
	if radius <= 0 {
		return []entity.NearbyPlace{}, nil
	}
	rows, err := r.pool.Query(ctx, withinRadiusQuery, center.Lon, center.Lat, radius)
	if err != nil {
		return nil, fmt.Errorf("query places within radius: %w", err)
	}
	defer rows.Close()

	return scanNearbyPlaces(rows)
}

func scanNearbyPlaces(rows pgx.Rows) ([]entity.NearbyPlace, error) {
	places := make([]entity.NearbyPlace, 0)
	for rows.Next() {
		var (
			place      entity.NearbyPlace
			lon, lat   float64
			duration   sql.NullFloat64
			wheelchair sql.NullString
			categories []string
			rating     sql.NullFloat64
		)
		if err := rows.Scan(
			&place.ID,
			&place.Name,
			&lon,
			&lat,
			&duration,
			&wheelchair,
			&place.BikeFriendly,
			&place.FamilyFriendly,
			&place.FriendsFriendly,
			&categories,
			&rating,
			&place.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}

		place.Location = geo.NewPoint(lon, lat)
		if duration.Valid {
			d := time.Duration(duration.Float64 * float64(time.Second))
			place.Duration = &d
		}
		if wheelchair.Valid {
			place.Accessibility = entity.ParseAccessibility(wheelchair.String)
		}
		place.Categories = stringSliceOrEmpty(categories)
		if rating.Valid {
			v := rating.Float64
			place.Rating = &v
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}
	return places, nil
}

// FindMirrors loads osm_places rows for the given ids in one round trip.
func (r *PGXPlacesRepository) FindMirrors(ctx context.Context, osmIDs []int64) (map[int64]entity.Mirror, error) {
	mirrors := make(map[int64]entity.Mirror)
	if len(osmIDs) == 0 {
		return mirrors, nil
	}

	query := `
        SELECT
            o.osm_id,
            o.name,
            o.wheelchair,
            ARRAY(
                SELECT c.name
                FROM osm_place_categories oc
                JOIN categories c ON c.id = oc.category_id
                WHERE oc.osm_place_id = o.osm_id
                ORDER BY c.name
            ) AS categories
        FROM osm_places o
        WHERE o.osm_id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, osmIDs)
	if err != nil {
		return nil, fmt.Errorf("query osm mirrors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			mirror     entity.Mirror
			name       sql.NullString
			wheelchair sql.NullString
			categories []string
		)
		if err := rows.Scan(&mirror.OSMID, &name, &wheelchair, &categories); err != nil {
			return nil, fmt.Errorf("scan osm mirror: %w", err)
		}
		if name.Valid {
			v := name.String
			mirror.Name = &v
		}
		if wheelchair.Valid {
			mirror.Accessibility = entity.ParseAccessibility(wheelchair.String)
		}
		mirror.Categories = stringSliceOrEmpty(categories)
		mirrors[mirror.OSMID] = mirror
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate osm mirrors: %w", err)
	}
	return mirrors, nil
}

// AverageRatings averages review stars over the visits of each place.
func (r *PGXPlacesRepository) AverageRatings(ctx context.Context, source entity.Source, ids []int64) (map[int64]float64, error) {
	ratings := make(map[int64]float64)
	if len(ids) == 0 {
		return ratings, nil
	}

	query := `
        SELECT v.place_id, AVG(r.stars)::float8
        FROM visits v
        JOIN reviews r ON r.visit_id = v.id
        WHERE v.place_source = $1 AND v.place_id = ANY($2)
        GROUP BY v.place_id`

	rows, err := r.pool.Query(ctx, query, source.VisitSource(), ids)
	if err != nil {
		return nil, fmt.Errorf("query average ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			avg float64
		)
		if err := rows.Scan(&id, &avg); err != nil {
			return nil, fmt.Errorf("scan average rating: %w", err)
		}
		ratings[id] = avg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate average ratings: %w", err)
	}
	return ratings, nil
}

func stringSliceOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ PlacesRepository = (*PGXPlacesRepository)(nil)
