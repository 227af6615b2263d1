package types

type LatLng struct {
  Lat float64 `json:"lat"`
  Lng float64 `json:"lng"`
}

type PlaceReview struct {
  Text       string  `json:"text"`
  Rating     float64 `json:"rating"`
  AuthorName string  `json:"author_name"`
}

type OpeningHours struct {
  OpenNow     *bool    `json:"open_now,omitempty"`
  WeekdayText []string `json:"weekday_text,omitempty"`
}

// PlaceCandidate is a venue fetched from the place-search provider for one
// onboarding question. Ephemeral: never persisted beyond the place cache.
type PlaceCandidate struct {
  PlaceID      string        `json:"place_id"`
  DisplayName  string        `json:"display_name"`
  Address      string        `json:"address"`
  Location     *LatLng       `json:"location,omitempty"`
  Types        []string      `json:"types"`
  PrimaryType  string        `json:"primary_type,omitempty"`
  Rating       float64       `json:"rating"`
  Photos       []string      `json:"photos"`
  Reviews      []PlaceReview `json:"reviews,omitempty"`
  PriceLevel   *int          `json:"price_level,omitempty"`
  OpeningHours *OpeningHours `json:"opening_hours,omitempty"`

  // Atmosphere attributes used to describe selections to the inference
  // service and for personalized search filters.
  OutdoorSeating       bool `json:"outdoor_seating,omitempty"`
  AllowsDogs           bool `json:"allows_dogs,omitempty"`
  DineIn               bool `json:"dine_in,omitempty"`
  Takeout              bool `json:"takeout,omitempty"`
  Delivery             bool `json:"delivery,omitempty"`
  ServesCoffee         bool `json:"serves_coffee,omitempty"`
  GoodForGroups        bool `json:"good_for_groups,omitempty"`
  ServesBreakfast      bool `json:"serves_breakfast,omitempty"`
  ServesBrunch         bool `json:"serves_brunch,omitempty"`
  ServesVegetarianFood bool `json:"serves_vegetarian_food,omitempty"`
}

// Attributes flattens the boolean atmosphere fields into human-readable
// labels for prompts and explanations.
func (p *PlaceCandidate) Attributes() []string {
  var attrs []string
  if p.OutdoorSeating {
    attrs = append(attrs, "outdoor seating")
  }
  if p.AllowsDogs {
    attrs = append(attrs, "dog friendly")
  }
  if p.DineIn {
    attrs = append(attrs, "dine-in")
  }
  if p.Takeout {
    attrs = append(attrs, "takeout")
  }
  if p.Delivery {
    attrs = append(attrs, "delivery")
  }
  if p.ServesCoffee {
    attrs = append(attrs, "serves coffee")
  }
  if p.GoodForGroups {
    attrs = append(attrs, "good for groups")
  }
  if p.ServesBreakfast {
    attrs = append(attrs, "breakfast")
  }
  if p.ServesBrunch {
    attrs = append(attrs, "brunch")
  }
  if p.ServesVegetarianFood {
    attrs = append(attrs, "vegetarian options")
  }
  return attrs
}

type AutocompleteSuggestion struct {
  PlaceID     string `json:"place_id"`
  Description string `json:"description"`
}
