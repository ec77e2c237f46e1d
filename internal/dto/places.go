package dto

// NearbyQuery is the validated input of a nearby aggregation.
type NearbyQuery struct {
	Lat            float64 `json:"lat" validate:"min=-90,max=90"`
	Lon            float64 `json:"lon" validate:"min=-180,max=180"`
	Radius         float64 `json:"radius" validate:"gt=0,max=50000"`
	SortByDistance bool    `json:"sort_by_distance"`
}

// WeightsInput overrides individual recommendation weights.
type WeightsInput struct {
	Category      *float64 `json:"category" validate:"omitempty,min=0"`
	Accessibility *float64 `json:"accessibility" validate:"omitempty,min=0"`
	Distance      *float64 `json:"distance" validate:"omitempty,min=0"`
	Rating        *float64 `json:"rating" validate:"omitempty,min=0"`
}

// RecommendRequest asks for places around a point ranked by preference.
type RecommendRequest struct {
	Lat           float64       `json:"lat" validate:"min=-90,max=90"`
	Lon           float64       `json:"lon" validate:"min=-180,max=180"`
	Radius        float64       `json:"radius" validate:"omitempty,gt=0,max=50000"`
	Categories    []string      `json:"categories" validate:"dive,required"`
	Accessibility int           `json:"accessibility" validate:"min=0,max=2"`
	Weights       *WeightsInput `json:"weights,omitempty"`
}

// CategoriesResponse lists the category labels found around a point.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}
