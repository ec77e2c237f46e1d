package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/geo"
	"github.com/roamium/discovery/internal/logging"
	"github.com/roamium/discovery/internal/overpass"
	"github.com/roamium/discovery/internal/repository"
)

// PlaceSource yields places around a point annotated with their distance.
type PlaceSource interface {
	Name() entity.Source
	Nearby(ctx context.Context, center geo.Point, radius float64) ([]entity.AggregatedPlace, error)
}

// LocalSource reads curated places from the catalogue.
type LocalSource struct {
	repo repository.PlacesRepository
}

// NewLocalSource creates a catalogue backed place source.
func NewLocalSource(repo repository.PlacesRepository) *LocalSource {
	return &LocalSource{repo: repo}
}

// Name implements PlaceSource.
func (s *LocalSource) Name() entity.Source {
	return entity.SourceLocal
}

// Nearby returns catalogue places strictly within radius of center.
func (s *LocalSource) Nearby(ctx context.Context, center geo.Point, radius float64) ([]entity.AggregatedPlace, error) {
	places, err := s.repo.WithinRadius(ctx, center, radius)
	if err != nil {
		return nil, fmt.Errorf("local places: %w", err)
	}
	out := make([]entity.AggregatedPlace, 0, len(places))
	for _, p := range places {
		out = append(out, entity.FromPlace(p.Place, p.Distance))
	}
	return out, nil
}

var phoneTagKeys = []string{"phone", "contact:phone"}

// ExternalSourceOptions tunes the external source.
type ExternalSourceOptions struct {
	Filters        []overpass.TagFilter
	TimeoutSeconds int
	PhoneRegion    string
}

// ExternalSource queries OpenStreetMap through an Overpass interpreter and
// applies local mirror overrides and ratings.
type ExternalSource struct {
	interpreter overpass.Interpreter
	repo        repository.PlacesRepository
	opts        ExternalSourceOptions
}

// NewExternalSource builds an external source. repo may be nil, in which case
// results carry no mirror overrides or ratings.
func NewExternalSource(interpreter overpass.Interpreter, repo repository.PlacesRepository, opts ExternalSourceOptions) *ExternalSource {
	if len(opts.Filters) == 0 {
		opts.Filters = overpass.DefaultTagFilters
	}
	return &ExternalSource{interpreter: interpreter, repo: repo, opts: opts}
}

// Name implements PlaceSource.
func (s *ExternalSource) Name() entity.Source {
	return entity.SourceExternal
}

// Nearby runs one batched query for every configured tag filter and
// translates the returned nodes.
func (s *ExternalSource) Nearby(ctx context.Context, center geo.Point, radius float64) ([]entity.AggregatedPlace, error) {
	query := overpass.NewQueryBuilder(s.opts.TimeoutSeconds).Around(center, radius, s.opts.Filters...)
	elements, err := s.interpreter.Interpret(ctx, query.String())
	if err != nil {
		return nil, &ExternalSourceError{Source: "overpass", Err: err}
	}

	nodes := make([]overpass.Element, 0, len(elements))
	ids := make([]int64, 0, len(elements))
	for _, el := range elements {
		if el.Type != "" && el.Type != "node" {
			continue
		}
		nodes = append(nodes, el)
		ids = append(ids, el.ID)
	}

	mirrors := map[int64]entity.Mirror{}
	ratings := map[int64]float64{}
	if s.repo != nil && len(ids) > 0 {
		if mirrors, err = s.repo.FindMirrors(ctx, ids); err != nil {
			return nil, fmt.Errorf("osm mirrors: %w", err)
		}
		if ratings, err = s.repo.AverageRatings(ctx, entity.SourceExternal, ids); err != nil {
			return nil, fmt.Errorf("osm ratings: %w", err)
		}
	}

	out := make([]entity.AggregatedPlace, 0, len(nodes))
	for _, el := range nodes {
		place := s.translate(el, center)
		if m, ok := mirrors[el.ID]; ok {
			applyMirror(&place, m)
		}
		if avg, ok := ratings[el.ID]; ok {
			place.Rating = &avg
		}
		out = append(out, place)
	}

	logging.Ctx(ctx).Debug().Int("elements", len(elements)).Int("places", len(out)).Int("mirrors", len(mirrors)).Msg("external places translated")
	return out, nil
}

func (s *ExternalSource) translate(el overpass.Element, center geo.Point) entity.AggregatedPlace {
	location := geo.NewPoint(el.Lon, el.Lat)
	place := entity.AggregatedPlace{
		ID:         el.ID,
		Name:       el.Tags["name"],
		Location:   location,
		Categories: TagCategories(el.Tags),
		Distance:   geo.Distance(center, location),
		Source:     entity.SourceExternal,
	}
	if raw, ok := el.Tags["wheelchair"]; ok {
		place.Accessibility = entity.ParseAccessibility(raw)
	}
	if phone := s.phone(el.Tags); phone != "" {
		place.Phone = &phone
	}
	return place
}

// phone returns the first phone tag value, in E.164 when it parses.
func (s *ExternalSource) phone(tags map[string]string) string {
	for _, key := range phoneTagKeys {
		raw, ok := tags[key]
		if !ok {
			continue
		}
		raw = strings.TrimSpace(strings.SplitN(raw, ";", 2)[0])
		if raw == "" {
			continue
		}
		number, err := phonenumbers.Parse(raw, s.opts.PhoneRegion)
		if err != nil || !phonenumbers.IsValidNumber(number) {
			return raw
		}
		return phonenumbers.Format(number, phonenumbers.E164)
	}
	return ""
}

// TagCategories derives sorted, de-duplicated categories from the recognised
// tag keys, splitting ';' separated values.
func TagCategories(tags map[string]string) []string {
	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, key := range overpass.CategoryKeys {
		raw, ok := tags[key]
		if !ok {
			continue
		}
		for _, token := range strings.Split(raw, ";") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			categories = append(categories, token)
		}
	}
	sort.Strings(categories)
	return categories
}

// applyMirror overrides the name and accessibility when the mirror sets them
// and always replaces the categories.
func applyMirror(place *entity.AggregatedPlace, m entity.Mirror) {
	if m.Name != nil {
		place.Name = *m.Name
	}
	if m.Accessibility != nil {
		acc := *m.Accessibility
		place.Accessibility = &acc
	}
	categories := make([]string, len(m.Categories))
	copy(categories, m.Categories)
	sort.Strings(categories)
	place.Categories = categories
}

var (
	_ PlaceSource = (*LocalSource)(nil)
	_ PlaceSource = (*ExternalSource)(nil)
)
