package service

import (
	"context"
	"sort"

	"github.com/roamium/discovery/internal/dto"
	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/geo"
	"github.com/roamium/discovery/internal/logging"
	"github.com/roamium/discovery/internal/metrics"
	"github.com/roamium/discovery/internal/validation"
)

// AggregateRequest describes a nearby lookup. A zero Radius selects the
// aggregator's default.
type AggregateRequest struct {
	Center         geo.Point
	Radius         float64
	SortByDistance bool
}

// Aggregator merges the results of several place sources.
type Aggregator struct {
	sources       []PlaceSource
	defaultRadius float64
}

// NewAggregator queries sources in the given order; results keep that order.
func NewAggregator(defaultRadius float64, sources ...PlaceSource) *Aggregator {
	return &Aggregator{sources: sources, defaultRadius: defaultRadius}
}

// DefaultRadius returns the radius used when a request leaves it at zero.
func (a *Aggregator) DefaultRadius() float64 {
	return a.defaultRadius
}

// Aggregate concatenates every source's places without de-duplication and,
// when requested, stable-sorts them by ascending distance.
func (a *Aggregator) Aggregate(ctx context.Context, req AggregateRequest) ([]entity.AggregatedPlace, error) {
	if req.Radius == 0 {
		req.Radius = a.defaultRadius
	}
	query := dto.NearbyQuery{Lat: req.Center.Lat, Lon: req.Center.Lon, Radius: req.Radius}
	if err := validation.Struct(query); err != nil {
		return nil, invalidParameter(err)
	}

	places := make([]entity.AggregatedPlace, 0)
	for _, source := range a.sources {
		found, err := source.Nearby(ctx, req.Center, req.Radius)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("source", string(source.Name())).Msg("place source failed")
			return nil, err
		}
		metrics.AggregatedPlaces.WithLabelValues(string(source.Name())).Observe(float64(len(found)))
		places = append(places, found...)
	}

	if req.SortByDistance {
		SortByDistance(places)
	}
	return places, nil
}

// ValidateRecommendRequest checks a recommendation request and reports
// failures as InvalidParameterError.
func ValidateRecommendRequest(req dto.RecommendRequest) error {
	if err := validation.Struct(req); err != nil {
		return invalidParameter(err)
	}
	return nil
}

// SortByDistance orders places by ascending distance, keeping the input order
// of ties.
func SortByDistance(places []entity.AggregatedPlace) {
	sort.SliceStable(places, func(i, j int) bool {
		return places[i].Distance < places[j].Distance
	})
}

// ExtractCategories returns the sorted union of the places' categories.
func ExtractCategories(places []entity.AggregatedPlace) []string {
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, p := range places {
		for _, c := range p.Categories {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)
	return categories
}
