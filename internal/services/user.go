package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/google/uuid"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/types"
)

type UserService interface {
  Get(ctx context.Context, userID uuid.UUID) (*types.User, error)
  SetResidentialPlace(ctx context.Context, userID uuid.UUID, placeID string) (*types.User, error)
}

type userService struct {
  log      *logger.Logger
  users    repos.UserRepo
  provider PlaceSearchProvider
}

func NewUserService(log *logger.Logger, users repos.UserRepo, provider PlaceSearchProvider) UserService {
  serviceLog := log.With("service", "UserService")
  return &userService{log: serviceLog, users: users, provider: provider}
}

func (s *userService) Get(ctx context.Context, userID uuid.UUID) (*types.User, error) {
  user, err := s.users.GetByID(ctx, nil, userID)
  if err != nil {
    return nil, err
  }
  if user == nil {
    return nil, fmt.Errorf("%w: user %s", apierr.ErrNotFound, userID)
  }
  return user, nil
}

// SetResidentialPlace stores the user's home place. The display label comes
// from provider details when reachable, otherwise the raw place id so the
// write never blocks on the provider.
func (s *userService) SetResidentialPlace(ctx context.Context, userID uuid.UUID, placeID string) (*types.User, error) {
  if strings.TrimSpace(placeID) == "" {
    return nil, fmt.Errorf("%w: place id is required", apierr.ErrInvalidArgument)
  }
  user, err := s.Get(ctx, userID)
  if err != nil {
    return nil, err
  }

  display := placeID
  details, err := s.provider.PlaceDetails(ctx, placeID)
  if err != nil {
    s.log.Warn("Place details unavailable for residential place", "place_id", placeID, "error", err)
  } else if details != nil {
    switch {
    case details.Address != "":
      display = details.Address
    case details.DisplayName != "":
      display = details.DisplayName
    }
  }

  user.ResidentialPlace = display
  user.ResidentialPlaceID = placeID
  if err := s.users.Update(ctx, nil, user); err != nil {
    return nil, err
  }
  s.log.Info("Residential place updated", "user_id", userID, "place_id", placeID)
  return user, nil
}
