package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamium/discovery/internal/auth"
	"github.com/roamium/discovery/internal/dto"
	"github.com/roamium/discovery/internal/entity"
)

const seedJSON = `{
	"places": [
		{"id": 1, "name": "Museum", "location": {"lon": 13.4060, "lat": 52.5200}, "accessibility": "full", "categories": ["museum"]},
		{"id": 2, "name": "Cafe", "location": {"lon": 13.4051, "lat": 52.5200}, "accessibility": "limited", "categories": ["cafe"]},
		{"id": 3, "name": "Far away", "location": {"lon": 13.6000, "lat": 52.5200}, "categories": ["cafe"]}
	],
	"reviews": [{"place_id": 2, "stars": 5}]
}`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "places.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestNearbyOffline(t *testing.T) {
	out, err := run(t, "nearby", "--places-file", writeSeed(t), "--offline",
		"--lat", "52.52", "--lon", "13.405", "--radius", "1000", "--sort-by-distance")
	require.NoError(t, err)

	var places []entity.AggregatedPlace
	require.NoError(t, json.Unmarshal([]byte(out), &places))
	require.Len(t, places, 2)
	assert.Equal(t, int64(2), places[0].ID)
	assert.Equal(t, int64(1), places[1].ID)
	assert.Equal(t, entity.SourceLocal, places[0].Source)
	assert.Equal(t, 5.0, *places[0].Rating)
}

func TestCategoriesOffline(t *testing.T) {
	out, err := run(t, "categories", "--places-file", writeSeed(t), "--offline",
		"--lat", "52.52", "--lon", "13.405", "--radius", "1000")
	require.NoError(t, err)

	var resp dto.CategoriesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"cafe", "museum"}, resp.Categories)
}

func TestRecommendOffline(t *testing.T) {
	out, err := run(t, "recommend", "--places-file", writeSeed(t), "--offline",
		"--lat", "52.52", "--lon", "13.405", "--radius", "1000", "--categories", "cafe")
	require.NoError(t, err)

	var places []entity.AggregatedPlace
	require.NoError(t, json.Unmarshal([]byte(out), &places))
	require.Len(t, places, 2)
	assert.Equal(t, int64(2), places[0].ID)
	require.NotNil(t, places[0].Score)
	assert.Greater(t, *places[0].Score, *places[1].Score)
}

func TestRecommendRejectsBadFlags(t *testing.T) {
	seed := writeSeed(t)

	_, err := run(t, "recommend", "--places-file", seed, "--offline", "--lat", "52.52", "--lon", "13.405", "--accessibility", "3")
	assert.Error(t, err)

	_, err = run(t, "recommend", "--places-file", seed, "--offline", "--lat", "52.52", "--lon", "13.405", "--weights", "1,2")
	assert.Error(t, err)

	_, err = run(t, "recommend", "--places-file", seed, "--offline", "--lat", "52.52", "--lon", "13.405", "--weights", "1,-2,1,1")
	assert.Error(t, err)
}

func TestNearbyInvalidInput(t *testing.T) {
	_, err := run(t, "nearby", "--places-file", writeSeed(t), "--offline", "--lat", "95", "--lon", "13.405")
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "")
	_, err = run(t, "nearby", "--offline", "--lat", "52.52", "--lon", "13.405")
	assert.ErrorContains(t, err, "--places-file")
}

func TestNearbyWithOverpass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.True(t, strings.HasPrefix(r.PostForm.Get("data"), "[out:json]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"elements": [
			{"type": "node", "id": 42, "lat": 52.5201, "lon": 13.4050, "tags": {"amenity": "cafe", "name": "Kiosk", "wheelchair": "yes"}}
		]}`)
	}))
	defer srv.Close()

	out, err := run(t, "nearby", "--places-file", writeSeed(t), "--overpass-url", srv.URL,
		"--lat", "52.52", "--lon", "13.405", "--radius", "1000")
	require.NoError(t, err)

	var places []entity.AggregatedPlace
	require.NoError(t, json.Unmarshal([]byte(out), &places))
	require.Len(t, places, 3)
	external := places[2]
	assert.Equal(t, entity.SourceExternal, external.Source)
	assert.Equal(t, int64(42), external.ID)
	assert.Equal(t, "Kiosk", external.Name)
	assert.Equal(t, []string{"cafe"}, external.Categories)
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "--subject", "svc-planner", "--secret", "test-secret", "--scope", auth.ScopePlacesRead)
	require.NoError(t, err)

	claims, err := auth.NewJWTManager("test-secret", 0).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "svc-planner", claims.Subject)
	assert.True(t, claims.HasScope(auth.ScopePlacesRead))
	assert.False(t, claims.HasScope(auth.ScopePlacesRecommend))
}
