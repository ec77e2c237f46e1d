package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/goccy/go-json"

	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/geo"
)

const (
	rtreeDimensions  = 2
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
	rtreeTolerance   = 1e-9
)

// placeItem indexes a place by its (lon, lat) coordinate.
type placeItem struct {
	place entity.Place
	rect  *rtreego.Rect
}

func (i *placeItem) Bounds() *rtreego.Rect {
	return i.rect
}

type ratingSum struct {
	total float64
	count int
}

// RTreePlacesRepository is an in-memory PlacesRepository backed by an R-tree.
// It is safe for concurrent use.
type RTreePlacesRepository struct {
	mu      sync.RWMutex
	tree    *rtreego.Rtree
	mirrors map[int64]entity.Mirror
	ratings map[entity.Source]map[int64]ratingSum
}

// NewRTreePlacesRepository returns an empty in-memory repository.
func NewRTreePlacesRepository() *RTreePlacesRepository {
	return &RTreePlacesRepository{
		tree:    rtreego.NewTree(rtreeDimensions, rtreeMinChildren, rtreeMaxChildren),
		mirrors: make(map[int64]entity.Mirror),
		ratings: make(map[entity.Source]map[int64]ratingSum),
	}
}

// AddPlaces indexes places. Coordinates must be valid WGS84 values.
func (r *RTreePlacesRepository) AddPlaces(places ...entity.Place) error {
	items := make([]*placeItem, 0, len(places))
	for _, p := range places {
		if p.Location.Lat < -90 || p.Location.Lat > 90 || p.Location.Lon < -180 || p.Location.Lon > 180 {
			return fmt.Errorf("place %d: coordinate out of range (%v, %v)", p.ID, p.Location.Lon, p.Location.Lat)
		}
		level, err := normalizeAccessibility(p.Accessibility)
		if err != nil {
			return fmt.Errorf("place %d: %w", p.ID, err)
		}
		p.Accessibility = level
		p.Categories = stringSliceOrEmpty(p.Categories)
		point := rtreego.Point{p.Location.Lon, p.Location.Lat}
		items = append(items, &placeItem{place: p, rect: point.ToRect(rtreeTolerance)})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		r.tree.Insert(item)
	}
	return nil
}

// AddMirrors stores or replaces OSM mirrors.
func (r *RTreePlacesRepository) AddMirrors(mirrors ...entity.Mirror) error {
	normalized := make([]entity.Mirror, 0, len(mirrors))
	for _, m := range mirrors {
		level, err := normalizeAccessibility(m.Accessibility)
		if err != nil {
			return fmt.Errorf("mirror %d: %w", m.OSMID, err)
		}
		m.Accessibility = level
		m.Categories = stringSliceOrEmpty(m.Categories)
		normalized = append(normalized, m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range normalized {
		r.mirrors[m.OSMID] = m
	}
	return nil
}

// normalizeAccessibility maps catalogue and OSM wheelchair values onto the
// known levels and rejects anything else.
func normalizeAccessibility(a *entity.Accessibility) (*entity.Accessibility, error) {
	if a == nil {
		return nil, nil
	}
	level := entity.ParseAccessibility(string(*a))
	if level == nil {
		return nil, fmt.Errorf("unknown accessibility %q", *a)
	}
	return level, nil
}

// AddReview records a review with the given stars for a place of source.
func (r *RTreePlacesRepository) AddReview(source entity.Source, placeID int64, stars float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bySource, ok := r.ratings[source]
	if !ok {
		bySource = make(map[int64]ratingSum)
		r.ratings[source] = bySource
	}
	sum := bySource[placeID]
	sum.total += stars
	sum.count++
	bySource[placeID] = sum
}

// Len returns the number of indexed places.
func (r *RTreePlacesRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Size()
}

// WithinRadius searches the bounding box of the circle and keeps places whose
// great-circle distance is strictly below radius.
func (r *RTreePlacesRepository) WithinRadius(ctx context.Context, center geo.Point, radius float64) ([]entity.NearbyPlace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if radius <= 0 {
		return []entity.NearbyPlace{}, nil
	}

	dLat, dLon := geo.DegreesAround(center, radius)
	minLon, maxLon := center.Lon-dLon, center.Lon+dLon
	if minLon < -180 || maxLon > 180 {
		minLon, maxLon = -180, 180
	}
	minLat, maxLat := max(center.Lat-dLat, -90), min(center.Lat+dLat, 90)

	bounds, err := rtreego.NewRect(
		rtreego.Point{minLon, minLat},
		[]float64{maxLon - minLon + rtreeTolerance, maxLat - minLat + rtreeTolerance},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid radius search: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := r.tree.SearchIntersect(bounds)
	places := make([]entity.NearbyPlace, 0, len(results))
	for _, result := range results {
		item, ok := result.(*placeItem)
		if !ok {
			continue
		}
		d := geo.Distance(center, item.place.Location)
		if d >= radius {
			continue
		}
		place := item.place
		if avg, ok := r.averageLocked(entity.SourceLocal, place.ID); ok {
			place.Rating = &avg
		}
		places = append(places, entity.NearbyPlace{Place: place, Distance: d})
	}

	sort.Slice(places, func(i, j int) bool { return places[i].ID < places[j].ID })
	return places, nil
}

// FindMirrors returns the stored mirrors among osmIDs.
func (r *RTreePlacesRepository) FindMirrors(ctx context.Context, osmIDs []int64) (map[int64]entity.Mirror, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	mirrors := make(map[int64]entity.Mirror)
	for _, id := range osmIDs {
		if m, ok := r.mirrors[id]; ok {
			mirrors[id] = m
		}
	}
	return mirrors, nil
}

// AverageRatings returns the mean review stars per place id for source.
func (r *RTreePlacesRepository) AverageRatings(ctx context.Context, source entity.Source, ids []int64) (map[int64]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ratings := make(map[int64]float64)
	for _, id := range ids {
		if avg, ok := r.averageLocked(source, id); ok {
			ratings[id] = avg
		}
	}
	return ratings, nil
}

func (r *RTreePlacesRepository) averageLocked(source entity.Source, id int64) (float64, bool) {
	sum, ok := r.ratings[source][id]
	if !ok || sum.count == 0 {
		return 0, false
	}
	return sum.total / float64(sum.count), true
}

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Places  []entity.Place  `json:"places"`
	Mirrors []entity.Mirror `json:"mirrors"`
	Reviews []SeedReview    `json:"reviews"`
}

// SeedReview is a single review of a local or external place.
type SeedReview struct {
	Source  entity.Source `json:"source"`
	PlaceID int64         `json:"place_id"`
	Stars   float64       `json:"stars"`
}

// LoadSeed decodes a Seed document into a new repository.
func LoadSeed(reader io.Reader) (*RTreePlacesRepository, error) {
	var seed Seed
	if err := json.NewDecoder(reader).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode places seed: %w", err)
	}

	repo := NewRTreePlacesRepository()
	if err := repo.AddPlaces(seed.Places...); err != nil {
		return nil, err
	}
	if err := repo.AddMirrors(seed.Mirrors...); err != nil {
		return nil, err
	}
	for _, review := range seed.Reviews {
		if review.Stars < 1 || review.Stars > 5 {
			return nil, fmt.Errorf("review of place %d: stars must be within [1,5], got %v", review.PlaceID, review.Stars)
		}
		source := review.Source
		if source == "" {
			source = entity.SourceLocal
		}
		repo.AddReview(source, review.PlaceID, review.Stars)
	}
	return repo, nil
}

// LoadSeedFile reads a Seed document from path.
func LoadSeedFile(path string) (*RTreePlacesRepository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open places seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

var _ PlacesRepository = (*RTreePlacesRepository)(nil)
