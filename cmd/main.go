package main

import (
  "fmt"
  "math/rand"
  "os"
  "time"

  "github.com/milaplaces/mila-backend/internal/db"
  "github.com/milaplaces/mila-backend/internal/handlers"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/middleware"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/server"
  "github.com/milaplaces/mila-backend/internal/services"
  "github.com/milaplaces/mila-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Redis
  redisService, err := db.NewRedisService(log)
  if err != nil {
    log.Error("Redis init failed", "error", err)
    os.Exit(1)
  }
  defer redisService.Close()
  theRedis := redisService.Client()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  tasteProfileRepo := repos.NewTasteProfileRepo(thePG, log)
  savedPlaceRepo := repos.NewSavedPlaceRepo(thePG, log)
  sessionRepo := repos.NewSessionRepo(theRedis, log)
  placeCacheRepo := repos.NewPlaceCacheRepo(theRedis, log)
  rateLimitRepo := repos.NewRateLimitRepo(theRedis, log)

  // Services
  log.Info("Setting up Services from main...")
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  placesClient, err := services.NewGooglePlacesClient(log)
  if err != nil {
    log.Error("Could not init GooglePlacesClient", "error", err)
    os.Exit(1)
  }
  messageSelector, err := services.NewMessageSelector(rand.New(rand.NewSource(time.Now().UnixNano())))
  if err != nil {
    log.Error("Could not init MessageSelector", "error", err)
    os.Exit(1)
  }
  authService := services.NewAuthService(log, userRepo)
  userService := services.NewUserService(log, userRepo, placesClient)
  placeService := services.NewPlaceService(log, placesClient, placeCacheRepo, savedPlaceRepo)
  profileService := services.NewTasteProfileService(log, tasteProfileRepo, openaiClient)
  inferenceService := services.NewPreferenceInferenceService(log, openaiClient)
  updateCoordinator := services.NewPreferenceUpdateCoordinator(log, profileService, inferenceService)
  candidateSource := services.NewCandidateSource(log, placesClient)
  onboardingService := services.NewOnboardingService(
    log,
    sessionRepo,
    userRepo,
    candidateSource,
    updateCoordinator,
    profileService,
    messageSelector,
    placesClient,
    rand.New(rand.NewSource(time.Now().UnixNano())),
  )
  searchService := services.NewSearchService(log, userRepo, profileService, placesClient, openaiClient, rateLimitRepo)

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(authService)
  userHandler := handlers.NewUserHandler(userService)
  onboardingHandler := handlers.NewOnboardingHandler(onboardingService, placeService)
  placeHandler := handlers.NewPlaceHandler(placeService)
  searchHandler := handlers.NewSearchHandler(searchService)
  bioHandler := handlers.NewBioHandler(profileService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:          authHandler,
    AuthMiddleware:       authMiddleware,
    UserHandler:          userHandler,
    OnboardingHandler:    onboardingHandler,
    PlaceHandler:         placeHandler,
    SearchHandler:        searchHandler,
    BioHandler:           bioHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
