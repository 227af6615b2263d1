package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/milaplaces/mila-backend/internal/services"
  "github.com/milaplaces/mila-backend/internal/types"
)

type PlaceHandler struct {
  placeService      services.PlaceService
}

func NewPlaceHandler(placeService services.PlaceService) *PlaceHandler {
  return &PlaceHandler{placeService: placeService}
}

func (ph *PlaceHandler) Autocomplete(c *gin.Context) {
  var req struct {
    Input                string         `json:"input"`
    IncludedPrimaryTypes []string       `json:"included_primary_types"`
    Bias                 *types.LatLng  `json:"bias"`
    BiasRadiusMeters     float64        `json:"bias_radius_meters"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  suggestions, err := ph.placeService.Autocomplete(c.Request.Context(), req.Input, req.IncludedPrimaryTypes, req.Bias, req.BiasRadiusMeters)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"suggestions": suggestions})
}

func (ph *PlaceHandler) GetDetails(c *gin.Context) {
  place, err := ph.placeService.Details(c.Request.Context(), c.Param("placeId"))
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"place": place})
}

func (ph *PlaceHandler) Save(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  var req struct {
    PlaceID     string              `json:"place_id"`
    Category    types.PlaceCategory `json:"category"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  saved, err := ph.placeService.Save(c.Request.Context(), userID, req.PlaceID, req.Category)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"saved": saved})
}

func (ph *PlaceHandler) Unsave(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  if err := ph.placeService.Unsave(c.Request.Context(), userID, c.Param("placeId")); err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": true})
}

func (ph *PlaceHandler) ListSaved(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  saved, err := ph.placeService.ListSaved(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"saved": saved})
}

func (ph *PlaceHandler) Rate(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  var req struct {
    PlaceID     string      `json:"place_id"`
    Rating      int         `json:"rating"`
    Notes       string      `json:"notes"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  if err := ph.placeService.Rate(c.Request.Context(), userID, req.PlaceID, req.Rating, req.Notes); err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"rated": true})
}
