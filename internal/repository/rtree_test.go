package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/geo"
)

var berlin = geo.NewPoint(13.4050, 52.5200)

func TestRTreeWithinRadius(t *testing.T) {
	repo := NewRTreePlacesRepository()
	require.NoError(t, repo.AddPlaces(
		entity.Place{ID: 2, Name: "Near", Location: geo.NewPoint(13.4060, 52.5200), Categories: []string{"cafe"}},
		entity.Place{ID: 1, Name: "Nearer", Location: geo.NewPoint(13.4051, 52.5200)},
		entity.Place{ID: 3, Name: "Far", Location: geo.NewPoint(13.5000, 52.5200)},
	))
	assert.Equal(t, 3, repo.Len())

	places, err := repo.WithinRadius(context.Background(), berlin, 1000)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, int64(1), places[0].ID)
	assert.Equal(t, int64(2), places[1].ID)
	for _, p := range places {
		assert.InDelta(t, geo.Distance(berlin, p.Location), p.Distance, 1e-9)
		assert.Less(t, p.Distance, 1000.0)
	}
	assert.NotNil(t, places[0].Categories)
}

func TestRTreeWithinRadiusIsStrict(t *testing.T) {
	repo := NewRTreePlacesRepository()
	target := geo.NewPoint(13.4100, 52.5200)
	require.NoError(t, repo.AddPlaces(entity.Place{ID: 1, Location: target}))

	exact := geo.Distance(berlin, target)
	places, err := repo.WithinRadius(context.Background(), berlin, exact)
	require.NoError(t, err)
	assert.Empty(t, places)

	places, err = repo.WithinRadius(context.Background(), berlin, exact+0.01)
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestRTreeWithinRadiusAcrossAntimeridian(t *testing.T) {
	repo := NewRTreePlacesRepository()
	require.NoError(t, repo.AddPlaces(entity.Place{ID: 1, Location: geo.NewPoint(-179.999, 0)}))

	places, err := repo.WithinRadius(context.Background(), geo.NewPoint(179.999, 0), 1000)
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestRTreeRejectsInvalidCoordinates(t *testing.T) {
	repo := NewRTreePlacesRepository()
	err := repo.AddPlaces(entity.Place{ID: 1, Location: geo.NewPoint(200, 0)})
	assert.Error(t, err)
}

func TestRTreeRatingsAndMirrors(t *testing.T) {
	repo := NewRTreePlacesRepository()
	require.NoError(t, repo.AddPlaces(entity.Place{ID: 1, Location: berlin}))
	repo.AddReview(entity.SourceLocal, 1, 4)
	repo.AddReview(entity.SourceLocal, 1, 5)
	repo.AddReview(entity.SourceExternal, 1, 1)
	name := "Curated"
	require.NoError(t, repo.AddMirrors(entity.Mirror{OSMID: 99, Name: &name}))

	places, err := repo.WithinRadius(context.Background(), berlin, 10)
	require.NoError(t, err)
	require.Len(t, places, 1)
	require.NotNil(t, places[0].Rating)
	assert.Equal(t, 4.5, *places[0].Rating)

	ratings, err := repo.AverageRatings(context.Background(), entity.SourceExternal, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 1}, ratings)

	mirrors, err := repo.FindMirrors(context.Background(), []int64{99, 100})
	require.NoError(t, err)
	require.Contains(t, mirrors, int64(99))
	assert.Equal(t, "Curated", *mirrors[99].Name)
	assert.NotNil(t, mirrors[99].Categories)
}

func TestRTreeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRTreePlacesRepository().WithinRadius(ctx, berlin, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSeed(t *testing.T) {
	seed := `{
		"places": [{"id": 1, "name": "Cafe", "location": {"lon": 13.405, "lat": 52.52}, "accessibility": "full", "categories": ["cafe"]}],
		"mirrors": [{"osm_id": 42, "categories": ["bakery"]}],
		"reviews": [{"place_id": 1, "stars": 4}, {"source": "external", "place_id": 42, "stars": 2}]
	}`
	repo, err := LoadSeed(strings.NewReader(seed))
	require.NoError(t, err)

	places, err := repo.WithinRadius(context.Background(), berlin, 50)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, entity.AccessibilityFull, *places[0].Accessibility)
	assert.Equal(t, 4.0, *places[0].Rating)

	ratings, err := repo.AverageRatings(context.Background(), entity.SourceExternal, []int64{42})
	require.NoError(t, err)
	assert.Equal(t, 2.0, ratings[42])
}

func TestLoadSeedErrors(t *testing.T) {
	_, err := LoadSeed(strings.NewReader(`{"places": [`))
	assert.Error(t, err)

	_, err = LoadSeed(strings.NewReader(`{"reviews": [{"place_id": 1, "stars": 9}]}`))
	assert.Error(t, err)

	_, err = LoadSeed(strings.NewReader(`{"places": [{"id": 1, "location": {"lon": 13.4, "lat": 52.5}, "accessibility": "sometimes"}]}`))
	assert.ErrorContains(t, err, "unknown accessibility")

	_, err = LoadSeed(strings.NewReader(`{"mirrors": [{"osm_id": 7, "accessibility": "maybe"}]}`))
	assert.ErrorContains(t, err, "unknown accessibility")

	_, err = LoadSeedFile("/nonexistent/seed.json")
	assert.Error(t, err)
}

func TestLoadSeedNormalizesAccessibility(t *testing.T) {
	seed := `{
		"places": [
			{"id": 1, "location": {"lon": 13.405, "lat": 52.52}, "accessibility": "yes"},
			{"id": 2, "location": {"lon": 13.405, "lat": 52.52}, "accessibility": "no"},
			{"id": 3, "location": {"lon": 13.405, "lat": 52.52}}
		],
		"mirrors": [{"osm_id": 42, "accessibility": "designated"}]
	}`
	repo, err := LoadSeed(strings.NewReader(seed))
	require.NoError(t, err)

	places, err := repo.WithinRadius(context.Background(), berlin, 50)
	require.NoError(t, err)
	require.Len(t, places, 3)
	assert.Equal(t, entity.AccessibilityFull, *places[0].Accessibility)
	assert.Equal(t, entity.AccessibilityNone, *places[1].Accessibility)
	assert.Nil(t, places[2].Accessibility)

	mirrors, err := repo.FindMirrors(context.Background(), []int64{42})
	require.NoError(t, err)
	require.NotNil(t, mirrors[42].Accessibility)
	assert.Equal(t, entity.AccessibilityFull, *mirrors[42].Accessibility)
}
