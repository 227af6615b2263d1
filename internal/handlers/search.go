package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/milaplaces/mila-backend/internal/services"
  "github.com/milaplaces/mila-backend/internal/types"
)

type SearchHandler struct {
  searchService     services.SearchService
}

func NewSearchHandler(searchService services.SearchService) *SearchHandler {
  return &SearchHandler{searchService: searchService}
}

func (sh *SearchHandler) Personalized(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  var req struct {
    Destination        string              `json:"destination"`
    DestinationPlaceID string              `json:"destination_place_id"`
    Category           types.PlaceCategory `json:"category"`
    AdditionalFilters  map[string]bool     `json:"additional_filters"`
    UsePreferences     *bool               `json:"use_preferences"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  usePreferences := true
  if req.UsePreferences != nil {
    usePreferences = *req.UsePreferences
  }
  resp, err := sh.searchService.Personalized(c.Request.Context(), userID, services.SearchParams{
    Destination:        req.Destination,
    DestinationPlaceID: req.DestinationPlaceID,
    Category:           req.Category,
    AdditionalFilters:  req.AdditionalFilters,
    UsePreferences:     usePreferences,
  })
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, resp)
}
