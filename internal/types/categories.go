package types

// CategoryInfo describes one interviewable place-type bucket. GoogleTypes are
// the provider place types the bucket maps onto.
type CategoryInfo struct {
  ID          PlaceCategory `json:"id"`
  Name        string        `json:"name"`
  GoogleTypes []string      `json:"google_types"`
  Description string        `json:"description"`
}

var CategoryDefinitions = []CategoryInfo{
  {ID: "cafe", Name: "Cafes", GoogleTypes: []string{"cafe"}, Description: "Coffee houses and casual cafes"},
  {ID: "coffee_shop", Name: "Coffee Shops", GoogleTypes: []string{"coffee_shop"}, Description: "Specialty coffee and espresso bars"},
  {ID: "restaurant", Name: "Restaurants", GoogleTypes: []string{"restaurant"}, Description: "Dining establishments"},
  {ID: "bar", Name: "Bars", GoogleTypes: []string{"bar"}, Description: "Bars and pubs"},
  {ID: "night_club", Name: "Nightlife", GoogleTypes: []string{"night_club"}, Description: "Nightclubs and entertainment venues"},
  {ID: "museum", Name: "Museums", GoogleTypes: []string{"museum"}, Description: "Museums and cultural institutions"},
  {ID: "art_gallery", Name: "Art Galleries", GoogleTypes: []string{"art_gallery"}, Description: "Art galleries and exhibitions"},
  {ID: "park", Name: "Parks", GoogleTypes: []string{"park"}, Description: "Parks and green spaces"},
  {ID: "tourist_attraction", Name: "Attractions", GoogleTypes: []string{"tourist_attraction"}, Description: "Tourist attractions and landmarks"},
  {ID: "store", Name: "Shopping", GoogleTypes: []string{"store", "shopping_mall", "clothing_store", "book_store"}, Description: "Retail stores and shopping"},
  {ID: "movie_theater", Name: "Entertainment", GoogleTypes: []string{"movie_theater", "bowling_alley", "amusement_park"}, Description: "Entertainment venues"},
  {ID: "library", Name: "Libraries", GoogleTypes: []string{"library"}, Description: "Public libraries"},
  {ID: "bakery", Name: "Bakeries", GoogleTypes: []string{"bakery"}, Description: "Bakeries and pastry shops"},
  {ID: "gym", Name: "Fitness", GoogleTypes: []string{"gym"}, Description: "Gyms and fitness centers"},
  {ID: "spa", Name: "Wellness", GoogleTypes: []string{"spa"}, Description: "Spas and wellness centers"},
}

func GetCategoryInfo(id PlaceCategory) *CategoryInfo {
  for i := range CategoryDefinitions {
    if CategoryDefinitions[i].ID == id {
      return &CategoryDefinitions[i]
    }
  }
  return nil
}

func GetCategoryName(id PlaceCategory) string {
  if info := GetCategoryInfo(id); info != nil {
    return info.Name
  }
  return string(id)
}
