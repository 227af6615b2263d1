package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/milaplaces/mila-backend/internal/requestdata"
  "github.com/milaplaces/mila-backend/internal/services"
)

type UserHandler struct {
  userService     services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
  return &UserHandler{userService: userService}
}

// currentUserID pulls the authenticated user id placed on the request
// context by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    return uuid.Nil, errors.New("missing authenticated user")
  }
  return rd.UserID, nil
}

func (uh *UserHandler) GetMe(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  me, err := uh.userService.Get(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"me": me})
}

func (uh *UserHandler) SetResidentialPlace(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  var req struct {
    PlaceID     string      `json:"place_id"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  me, err := uh.userService.SetResidentialPlace(c.Request.Context(), userID, req.PlaceID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"me": me})
}
