package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "golang.org/x/crypto/bcrypt"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/types"
  "github.com/milaplaces/mila-backend/internal/utils"
)

// AuthService handles registration, login and bearer-token validation.
// Tokens are HS256 JWTs carrying the user id as subject.
type AuthService interface {
  Register(ctx context.Context, email, password, name string) (*types.User, string, error)
  Login(ctx context.Context, email, password string) (*types.User, string, error)
  ValidateToken(tokenString string) (uuid.UUID, error)
}

type authService struct {
  log         *logger.Logger
  users       repos.UserRepo
  secret      []byte
  tokenExpiry time.Duration
}

func NewAuthService(log *logger.Logger, users repos.UserRepo) AuthService {
  serviceLog := log.With("service", "AuthService")
  secret := utils.GetEnv("JWT_SECRET", "", serviceLog)
  if secret == "" {
    serviceLog.Warn("JWT_SECRET not set, tokens will not survive restarts")
    secret = uuid.NewString()
  }
  expiryHours := utils.GetEnvAsInt("JWT_EXPIRY_HOURS", 72, serviceLog)
  return &authService{
    log:         serviceLog,
    users:       users,
    secret:      []byte(secret),
    tokenExpiry: time.Duration(expiryHours) * time.Hour,
  }
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*types.User, string, error) {
  email = strings.ToLower(strings.TrimSpace(email))
  if email == "" || !strings.Contains(email, "@") {
    return nil, "", fmt.Errorf("%w: invalid email", apierr.ErrInvalidArgument)
  }
  if len(password) < 8 {
    return nil, "", fmt.Errorf("%w: password must be at least 8 characters", apierr.ErrInvalidArgument)
  }
  if strings.TrimSpace(name) == "" {
    return nil, "", fmt.Errorf("%w: name is required", apierr.ErrInvalidArgument)
  }

  exists, err := s.users.EmailExists(ctx, nil, email)
  if err != nil {
    return nil, "", err
  }
  if exists {
    return nil, "", fmt.Errorf("%w: email already registered", apierr.ErrInvalidArgument)
  }

  hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
  if err != nil {
    return nil, "", fmt.Errorf("hashing password: %w", err)
  }
  created, err := s.users.Create(ctx, nil, []*types.User{{
    Email:    email,
    Password: string(hashed),
    Name:     strings.TrimSpace(name),
    Tier:     types.TierFree,
  }})
  if err != nil {
    return nil, "", err
  }
  user := created[0]

  token, err := s.issueToken(user.ID)
  if err != nil {
    return nil, "", err
  }
  s.log.Info("User registered", "user_id", user.ID)
  return user, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*types.User, string, error) {
  email = strings.ToLower(strings.TrimSpace(email))
  user, err := s.users.GetByEmail(ctx, nil, email)
  if err != nil {
    return nil, "", err
  }
  if user == nil {
    return nil, "", fmt.Errorf("%w: unknown email or wrong password", apierr.ErrUnauthorized)
  }
  if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
    return nil, "", fmt.Errorf("%w: unknown email or wrong password", apierr.ErrUnauthorized)
  }
  token, err := s.issueToken(user.ID)
  if err != nil {
    return nil, "", err
  }
  return user, token, nil
}

func (s *authService) issueToken(userID uuid.UUID) (string, error) {
  now := time.Now()
  claims := jwt.RegisteredClaims{
    Subject:   userID.String(),
    IssuedAt:  jwt.NewNumericDate(now),
    ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  signed, err := token.SignedString(s.secret)
  if err != nil {
    return "", fmt.Errorf("signing token: %w", err)
  }
  return signed, nil
}

func (s *authService) ValidateToken(tokenString string) (uuid.UUID, error) {
  parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
    }
    return s.secret, nil
  })
  if err != nil || !parsed.Valid {
    return uuid.Nil, fmt.Errorf("%w: invalid token", apierr.ErrUnauthorized)
  }
  claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
  if !ok || claims.Subject == "" {
    return uuid.Nil, fmt.Errorf("%w: token has no subject", apierr.ErrUnauthorized)
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return uuid.Nil, fmt.Errorf("%w: malformed subject", apierr.ErrUnauthorized)
  }
  return userID, nil
}
