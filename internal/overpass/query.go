// Package overpass talks to an Overpass API interpreter endpoint.
package overpass

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roamium/discovery/internal/geo"
)

// TagFilter selects nodes carrying Key, optionally excluding some values.
type TagFilter struct {
	Key     string
	Exclude []string
}

// CategoryKeys are the OSM tag keys whose values are treated as place
// categories.
var CategoryKeys = []string{"amenity", "shop", "cuisine", "alcohol", "leisure", "club", "historic", "tourism"}

// amenityExclusions is street furniture that is never a destination.
var amenityExclusions = []string{
	"bench", "waste_basket", "parking", "parking_space", "bicycle_parking",
	"motorcycle_parking", "vending_machine", "waste_disposal", "recycling",
	"post_box", "telephone", "toilets", "shelter", "drinking_water",
	"grit_bin", "clock", "charging_station", "atm", "parking_entrance",
}

// DefaultTagFilters select nodes carrying any of the CategoryKeys.
var DefaultTagFilters = categoryFilters()

func categoryFilters() []TagFilter {
	filters := make([]TagFilter, 0, len(CategoryKeys))
	for _, key := range CategoryKeys {
		f := TagFilter{Key: key}
		if key == "amenity" {
			f.Exclude = amenityExclusions
		}
		filters = append(filters, f)
	}
	return filters
}

// QueryBuilder assembles an Overpass QL union of node clauses.
type QueryBuilder struct {
	timeout int
	clauses []string
}

// NewQueryBuilder returns a builder with a server-side timeout in seconds.
// A non-positive timeout omits the setting.
func NewQueryBuilder(timeoutSeconds int) *QueryBuilder {
	return &QueryBuilder{timeout: timeoutSeconds}
}

// Around adds one node clause per filter restricted to radius metres around
// center.
func (b *QueryBuilder) Around(center geo.Point, radius float64, filters ...TagFilter) *QueryBuilder {
	around := fmt.Sprintf("(around:%s,%s,%s)", formatFloat(radius), formatFloat(center.Lat), formatFloat(center.Lon))
	for _, f := range filters {
		if f.Key == "" {
			continue
		}
		var sb strings.Builder
		sb.WriteString("node[")
		sb.WriteString(quote(f.Key))
		sb.WriteString("]")
		if len(f.Exclude) > 0 {
			values := make([]string, len(f.Exclude))
			for i, v := range f.Exclude {
				values[i] = regexp.QuoteMeta(v)
			}
			sb.WriteString("[")
			sb.WriteString(quote(f.Key))
			sb.WriteString("!~")
			sb.WriteString(quote("^(" + strings.Join(values, "|") + ")$"))
			sb.WriteString("]")
		}
		sb.WriteString(around)
		sb.WriteString(";")
		b.clauses = append(b.clauses, sb.String())
	}
	return b
}

// Len returns the number of clauses added so far.
func (b *QueryBuilder) Len() int {
	return len(b.clauses)
}

// String renders the query.
func (b *QueryBuilder) String() string {
	var sb strings.Builder
	sb.WriteString("[out:json]")
	if b.timeout > 0 {
		sb.WriteString("[timeout:")
		sb.WriteString(strconv.Itoa(b.timeout))
		sb.WriteString("]")
	}
	sb.WriteString(";(")
	for _, c := range b.clauses {
		sb.WriteString(c)
	}
	sb.WriteString(");out body;")
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
