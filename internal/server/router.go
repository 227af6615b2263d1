package server

import (
  "strings"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/milaplaces/mila-backend/internal/handlers"
  "github.com/milaplaces/mila-backend/internal/middleware"
  "github.com/milaplaces/mila-backend/internal/utils"
)

type RouterConfig struct {
  AuthHandler       *handlers.AuthHandler
  AuthMiddleware    *middleware.AuthMiddleware
  UserHandler       *handlers.UserHandler
  OnboardingHandler *handlers.OnboardingHandler
  PlaceHandler      *handlers.PlaceHandler
  SearchHandler     *handlers.SearchHandler
  BioHandler        *handlers.BioHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  allowedOrigins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000", nil), ",")
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowedOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
  }

// ===============
// || Protected ||
// ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // User
  protected.GET("/user", cfg.UserHandler.GetMe)
  protected.PUT("/user/residential-place", cfg.UserHandler.SetResidentialPlace)
  // Onboarding
  protected.POST("/onboarding/initialize", cfg.OnboardingHandler.Initialize)
  protected.POST("/onboarding/select-categories", cfg.OnboardingHandler.SelectCategories)
  protected.POST("/onboarding/get-question", cfg.OnboardingHandler.GetQuestion)
  protected.POST("/onboarding/submit-answer", cfg.OnboardingHandler.SubmitAnswer)
  protected.POST("/onboarding/different-results", cfg.OnboardingHandler.RequestDifferentResults)
  protected.POST("/onboarding/skip-category", cfg.OnboardingHandler.SkipCategory)
  protected.POST("/onboarding/complete", cfg.OnboardingHandler.Complete)
  protected.GET("/onboarding/session", cfg.OnboardingHandler.GetSession)
  // Places
  protected.POST("/places/autocomplete", cfg.PlaceHandler.Autocomplete)
  protected.GET("/places/:placeId", cfg.PlaceHandler.GetDetails)
  protected.POST("/places/save", cfg.PlaceHandler.Save)
  protected.DELETE("/places/save/:placeId", cfg.PlaceHandler.Unsave)
  protected.GET("/places/saved", cfg.PlaceHandler.ListSaved)
  protected.POST("/places/rate", cfg.PlaceHandler.Rate)
  // Search + BIO
  protected.POST("/search/personalized", cfg.SearchHandler.Personalized)
  protected.GET("/bio", cfg.BioHandler.GetLatest)

  return router
}
