package entity

import (
	"time"

	"github.com/roamium/discovery/internal/geo"
)

// Accessibility grades how well a place accommodates wheelchair users.
type Accessibility string

// Accessibility levels stored in the catalogue.
const (
	AccessibilityNone    Accessibility = "none"
	AccessibilityLimited Accessibility = "limited"
	AccessibilityFull    Accessibility = "full"
)

// Valid reports whether a is one of the known levels.
func (a Accessibility) Valid() bool {
	switch a {
	case AccessibilityNone, AccessibilityLimited, AccessibilityFull:
		return true
	default:
		return false
	}
}

// ParseAccessibility maps catalogue values and OSM wheelchair tag values onto
// an accessibility level. Unknown values yield nil.
func ParseAccessibility(raw string) *Accessibility {
	var level Accessibility
	switch raw {
	case "none", "no":
		level = AccessibilityNone
	case "limited":
		level = AccessibilityLimited
	case "full", "yes", "designated":
		level = AccessibilityFull
	default:
		return nil
	}
	return &level
}

// Source tells which place source produced a record.
type Source string

// Known place sources.
const (
	SourceLocal    Source = "local"
	SourceExternal Source = "external"
)

// VisitSource returns the value stored in visits.place_source for s.
func (s Source) VisitSource() string {
	if s == SourceExternal {
		return "osm"
	}
	return "roamium"
}

// Place is a curated place stored in the local catalogue.
type Place struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Location        geo.Point      `json:"location"`
	Duration        *time.Duration `json:"duration,omitempty"`
	Accessibility   *Accessibility `json:"accessibility"`
	BikeFriendly    bool           `json:"bike_friendly"`
	FamilyFriendly  bool           `json:"family_friendly"`
	FriendsFriendly bool           `json:"friends_friendly"`
	Categories      []string       `json:"categories"`
	Rating          *float64       `json:"rating,omitempty"`
}

// Mirror is a local record correlated to an OpenStreetMap node by its id. It
// overrides the externally supplied name, accessibility and categories.
type Mirror struct {
	OSMID         int64          `json:"osm_id"`
	Name          *string        `json:"name,omitempty"`
	Accessibility *Accessibility `json:"accessibility,omitempty"`
	Categories    []string       `json:"categories"`
}

// AggregatedPlace is the source-agnostic projection produced by the
// aggregation pipeline.
type AggregatedPlace struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Location      geo.Point      `json:"location"`
	Accessibility *Accessibility `json:"accessibility"`
	Categories    []string       `json:"categories"`
	Distance      float64        `json:"distance"`
	Rating        *float64       `json:"rating"`
	Phone         *string        `json:"phone,omitempty"`
	Source        Source         `json:"source"`
	Score         *float64       `json:"score,omitempty"`
}

// FromPlace projects a catalogue place onto an aggregated record.
func FromPlace(p Place, distance float64) AggregatedPlace {
	return AggregatedPlace{
		ID:            p.ID,
		Name:          p.Name,
		Location:      p.Location,
		Accessibility: p.Accessibility,
		Categories:    p.Categories,
		Distance:      distance,
		Rating:        p.Rating,
		Source:        SourceLocal,
	}
}

// NearbyPlace is a local place annotated with its distance from a query origin.
type NearbyPlace struct {
	Place
	Distance float64
}
