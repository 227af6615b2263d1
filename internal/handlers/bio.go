package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/milaplaces/mila-backend/internal/services"
)

type BioHandler struct {
  profileService    services.TasteProfileService
}

func NewBioHandler(profileService services.TasteProfileService) *BioHandler {
  return &BioHandler{profileService: profileService}
}

func (bh *BioHandler) GetLatest(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  profile, err := bh.profileService.Latest(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"bio": profile})
}
