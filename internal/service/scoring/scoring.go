// Package scoring ranks aggregated places against a user's preferences with a
// weighted cosine similarity over four features.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/roamium/discovery/internal/entity"
	"github.com/roamium/discovery/internal/metrics"
)

const (
	// distanceEpsilon keeps the distance denominator positive when every
	// place sits at the same distance.
	distanceEpsilon = 1e-6
	// categoryScale amplifies the category feature relative to the others.
	categoryScale = 10.0
	maxRating     = 5.0
)

// Weights are the non-negative per-feature weights of the composite score.
type Weights struct {
	Category      float64 `json:"category"`
	Accessibility float64 `json:"accessibility"`
	Distance      float64 `json:"distance"`
	Rating        float64 `json:"rating"`
}

// DefaultWeights returns base with the accessibility weight zeroed unless the
// user requires accessibility.
func DefaultWeights(accessibility int, base Weights) Weights {
	if accessibility <= 0 {
		base.Accessibility = 0
	}
	return base
}

func (w Weights) vector() [4]float64 {
	return [4]float64{w.Category, w.Accessibility, w.Distance, w.Rating}
}

// Preferences is a user's preference profile. Accessibility is 0 for no
// preference; any positive value excludes places without access.
type Preferences struct {
	Categories    []string
	Accessibility int
	Weights       Weights
}

// Features are the normalised inputs of a single place's score.
type Features struct {
	CategorySimilarity float64
	Accessibility      float64
	Distance           float64
	Rating             float64
}

func (f Features) vector() [4]float64 {
	return [4]float64{categoryScale * f.CategorySimilarity, f.Accessibility, f.Distance, f.Rating}
}

// AccessibilityValue maps an accessibility level onto the scoring scale:
// none -1, unknown 0, limited 1, full 2.
func AccessibilityValue(a *entity.Accessibility) float64 {
	if a == nil {
		return 0
	}
	switch *a {
	case entity.AccessibilityNone:
		return -1
	case entity.AccessibilityLimited:
		return 1
	case entity.AccessibilityFull:
		return 2
	default:
		return 0
	}
}

// Recommend scores places against prefs and returns them sorted by descending
// score, ties keeping their input order. When accessibility is required,
// places without access are dropped. The input slice is not modified.
func Recommend(places []entity.AggregatedPlace, prefs Preferences) []entity.AggregatedPlace {
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	}()

	ranked := make([]entity.AggregatedPlace, 0, len(places))
	for _, p := range places {
		if prefs.Accessibility > 0 && AccessibilityValue(p.Accessibility) < 0 {
			continue
		}
		ranked = append(ranked, p)
	}
	if len(ranked) == 0 {
		return ranked
	}

	features := Compute(ranked, prefs.Categories)
	ideal := [4]float64{1, float64(prefs.Accessibility), 1, 1}
	weights := prefs.Weights.vector()

	for i := range ranked {
		score := weightedCosine(ideal, features[i].vector(), weights)
		ranked[i].Score = &score
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Score > *ranked[j].Score
	})
	return ranked
}

// Compute derives the features of every place relative to the collection and
// the requested categories.
func Compute(places []entity.AggregatedPlace, categories []string) []Features {
	vocab := vocabulary(places)
	user := categoryVector(vocab, categories)

	maxDistance := 0.0
	for _, p := range places {
		maxDistance = math.Max(maxDistance, p.Distance)
	}
	maxDistance += distanceEpsilon

	out := make([]Features, len(places))
	for i, p := range places {
		rating := 0.0
		if p.Rating != nil {
			rating = *p.Rating / maxRating
		}
		out[i] = Features{
			CategorySimilarity: cosine(categoryVector(vocab, p.Categories), user),
			Accessibility:      AccessibilityValue(p.Accessibility),
			Distance:           1 - p.Distance/maxDistance,
			Rating:             rating,
		}
	}
	return out
}

// vocabulary indexes the sorted union of the places' categories.
func vocabulary(places []entity.AggregatedPlace) map[string]int {
	labels := make([]string, 0)
	seen := make(map[string]struct{})
	for _, p := range places {
		for _, c := range p.Categories {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			labels = append(labels, c)
		}
	}
	sort.Strings(labels)

	index := make(map[string]int, len(labels))
	for i, label := range labels {
		index[label] = i
	}
	return index
}

// categoryVector is the binary bag-of-words vector of categories over vocab.
// Labels outside the vocabulary are ignored.
func categoryVector(vocab map[string]int, categories []string) []float64 {
	v := make([]float64, len(vocab))
	for _, c := range categories {
		if i, ok := vocab[c]; ok {
			v[i] = 1
		}
	}
	return v
}

// cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector.
func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// weightedCosine is 1 minus the weighted cosine distance of a and b, or 0
// when either weighted norm is zero.
func weightedCosine(a, b, w [4]float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += w[i] * a[i] * b[i]
		normA += w[i] * a[i] * a[i]
		normB += w[i] * b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
