package services

import (
  "context"
  "errors"
  "fmt"
  "math/rand"
  "strings"
  "sync"

  "github.com/google/uuid"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/types"
)

const (
  multiSelectCandidateCount  = 4
  abComparisonCandidateCount = 2
  nearingCompletionAfter     = 7
)

// Question is one interview screen: which kind of question, the candidates
// to render, and the copy shown above them. Insufficient marks a partial
// batch so the UI can offer manual entry instead of blocking.
type Question struct {
  QuestionType   types.QuestionType     `json:"question_type"`
  QuestionNumber int                    `json:"question_number"`
  Message        string                 `json:"message"`
  Category       types.PlaceCategory    `json:"category"`
  Candidates     []types.PlaceCandidate `json:"candidates"`
  Insufficient   bool                   `json:"insufficient,omitempty"`
}

// AnswerResult reports where the interview stands after one answer.
type AnswerResult struct {
  ConfidenceScore    float64                `json:"confidence_score"`
  QuestionsAsked     int                    `json:"questions_asked"`
  ShouldContinue     bool                   `json:"should_continue"`
  NextQuestionType   types.QuestionType     `json:"next_question_type,omitempty"`
  NextQueries        []string               `json:"next_queries,omitempty"`
  NextMessage        string                 `json:"next_message,omitempty"`
  CategoryComplete   bool                   `json:"category_complete,omitempty"`
  NextCategory       types.PlaceCategory    `json:"next_category,omitempty"`
  OnboardingComplete bool                   `json:"onboarding_complete,omitempty"`
}

// GetQuestionOptions are caller overrides for one question. Any zero field
// falls back to the pending coordinator strategy, then to defaults.
type GetQuestionOptions struct {
  ExcludePlaceIDs []string
  OverrideType    types.QuestionType
  OverrideQueries []string
  OverrideMessage string
}

// OnboardingService is the interview state machine. Steps run
// location -> categories -> discover -> complete; within discover it cycles
// one category at a time until the stopping policy fires, then advances.
//
// Access is serialized per user: two concurrent submissions for the same
// user would otherwise race the session's read-modify-write.
type OnboardingService interface {
  Initialize(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error)
  SelectCategories(ctx context.Context, userID uuid.UUID, categories []types.PlaceCategory) (*types.OnboardingSession, error)
  GetQuestion(ctx context.Context, userID uuid.UUID, opts GetQuestionOptions) (*Question, error)
  SubmitAnswer(ctx context.Context, userID uuid.UUID, evidence InferenceEvidence) (*AnswerResult, error)
  SkipCategory(ctx context.Context, userID uuid.UUID) (*AnswerResult, error)
  RequestDifferentResults(ctx context.Context, userID uuid.UUID) (*Question, error)
  Complete(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error)
  State(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error)
}

type onboardingService struct {
  log         *logger.Logger
  sessions    repos.SessionRepo
  users       repos.UserRepo
  candidates  CandidateSource
  coordinator PreferenceUpdateCoordinator
  profiles    TasteProfileService
  messages    MessageSelector
  provider    PlaceSearchProvider

  rngMu sync.Mutex
  rng   *rand.Rand

  locksMu sync.Mutex
  locks   map[uuid.UUID]*sync.Mutex
}

func NewOnboardingService(
  log *logger.Logger,
  sessions repos.SessionRepo,
  users repos.UserRepo,
  candidates CandidateSource,
  coordinator PreferenceUpdateCoordinator,
  profiles TasteProfileService,
  messages MessageSelector,
  provider PlaceSearchProvider,
  rng *rand.Rand,
) OnboardingService {
  serviceLog := log.With("service", "OnboardingService")
  return &onboardingService{
    log:         serviceLog,
    sessions:    sessions,
    users:       users,
    candidates:  candidates,
    coordinator: coordinator,
    profiles:    profiles,
    messages:    messages,
    provider:    provider,
    rng:         rng,
    locks:       make(map[uuid.UUID]*sync.Mutex),
  }
}

func (s *onboardingService) userLock(userID uuid.UUID) *sync.Mutex {
  s.locksMu.Lock()
  defer s.locksMu.Unlock()
  lock, ok := s.locks[userID]
  if !ok {
    lock = &sync.Mutex{}
    s.locks[userID] = lock
  }
  return lock
}

func (s *onboardingService) Initialize(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error) {
  lock := s.userLock(userID)
  lock.Lock()
  defer lock.Unlock()

  user, err := s.users.GetByID(ctx, nil, userID)
  if err != nil {
    return nil, err
  }
  if user == nil {
    return nil, fmt.Errorf("%w: user %s", apierr.ErrNotFound, userID)
  }

  // Re-initializing overwrites any prior session, so onboarding can be retaken.
  session := &types.OnboardingSession{UserID: userID, CurrentStep: types.StepCategories}
  if user.ResidentialPlaceID == "" {
    session.CurrentStep = types.StepLocation
  }
  if err := s.sessions.Put(ctx, session); err != nil {
    return nil, err
  }
  return session, nil
}

// SelectCategories moves the session into discover and creates the initial
// profile version covering exactly the chosen categories.
func (s *onboardingService) SelectCategories(ctx context.Context, userID uuid.UUID, categories []types.PlaceCategory) (*types.OnboardingSession, error) {
  lock := s.userLock(userID)
  lock.Lock()
  defer lock.Unlock()

  if len(categories) == 0 {
    return nil, fmt.Errorf("%w: at least one category is required", apierr.ErrInvalidArgument)
  }
  for _, category := range categories {
    if types.GetCategoryInfo(category) == nil {
      return nil, fmt.Errorf("%w: unknown category %q", apierr.ErrInvalidArgument, category)
    }
  }

  session, err := s.sessions.Get(ctx, userID)
  if err != nil {
    return nil, err
  }
  if session == nil {
    return nil, apierr.ErrSessionNotFound
  }

  if _, err := s.profiles.Initialize(ctx, userID, categories); err != nil {
    return nil, err
  }

  session.CurrentStep = types.StepDiscover
  session.SelectedCategories = categories
  session.CurrentCategory = categories[0]
  session.QuestionsAsked = 0
  session.Completed = false
  session.ExcludedPlaceIDs = nil
  session.LastShownPlaceIDs = nil
  session.RecentConfidenceDeltas = nil
  session.LastConfidence = 0
  session.NextStrategy = nil

  if err := s.sessions.Put(ctx, session); err != nil {
    return nil, err
  }
  s.log.Info("Categories selected", "user_id", userID, "categories", categories)
  return session, nil
}

func (s *onboardingService) GetQuestion(ctx context.Context, userID uuid.UUID, opts GetQuestionOptions) (*Question, error) {
  lock := s.userLock(userID)
  lock.Lock()
  defer lock.Unlock()
  return s.getQuestionLocked(ctx, userID, opts)
}

func (s *onboardingService) getQuestionLocked(ctx context.Context, userID uuid.UUID, opts GetQuestionOptions) (*Question, error) {
  session, err := s.discoverSession(ctx, userID)
  if err != nil {
    return nil, err
  }
  user, err := s.users.GetByID(ctx, nil, userID)
  if err != nil {
    return nil, err
  }
  if user == nil {
    return nil, fmt.Errorf("%w: user %s", apierr.ErrNotFound, userID)
  }
  location, err := s.residentialLocation(ctx, user)
  if err != nil {
    return nil, err
  }

  questionNumber := session.QuestionsAsked + 1
  category := session.CurrentCategory
  city := cityName(user.ResidentialPlace)

  questionType := types.QuestionMultiSelect
  var queries []string
  var messageOverride string
  if questionNumber > 1 {
    if session.NextStrategy != nil {
      questionType = session.NextStrategy.QuestionType
      queries = session.NextStrategy.Queries
      messageOverride = session.NextStrategy.Message
    }
    if opts.OverrideType != "" {
      questionType = opts.OverrideType
    }
    if len(opts.OverrideQueries) > 0 {
      queries = opts.OverrideQueries
    }
  }
  if opts.OverrideMessage != "" {
    messageOverride = opts.OverrideMessage
  }

  required := multiSelectCandidateCount
  if questionType == types.QuestionABComparison {
    required = abComparisonCandidateCount
  }

  excluded := unionIDs(session.ExcludedPlaceIDs, opts.ExcludePlaceIDs)

  var candidates []types.PlaceCandidate
  var fetchErr error
  if len(queries) > 0 {
    candidates, fetchErr = s.candidates.FetchByQueries(ctx, category, city, *location, queries, required, excluded)
  } else {
    candidates, fetchErr = s.candidates.FetchNearby(ctx, category, *location, required, excluded)
  }
  insufficient := false
  if fetchErr != nil {
    if !errors.Is(fetchErr, apierr.ErrInsufficientCandidates) {
      return nil, fetchErr
    }
    insufficient = true
    s.log.Warn("Presenting partial candidate batch", "user_id", userID, "category", category, "found", len(candidates))
  }

  messageType := s.messageTypeFor(questionType, questionNumber)
  message := s.messages.Select(messageType, category, city, messageOverride)

  shown := make([]string, 0, len(candidates))
  for _, c := range candidates {
    shown = append(shown, c.PlaceID)
  }
  session.LastShownPlaceIDs = shown
  session.ExcludedPlaceIDs = unionIDs(session.ExcludedPlaceIDs, shown)
  if err := s.sessions.Put(ctx, session); err != nil {
    return nil, err
  }

  return &Question{
    QuestionType:   questionType,
    QuestionNumber: questionNumber,
    Message:        message,
    Category:       category,
    Candidates:     candidates,
    Insufficient:   insufficient,
  }, nil
}

func (s *onboardingService) SubmitAnswer(ctx context.Context, userID uuid.UUID, evidence InferenceEvidence) (*AnswerResult, error) {
  lock := s.userLock(userID)
  lock.Lock()
  defer lock.Unlock()

  session, err := s.discoverSession(ctx, userID)
  if err != nil {
    return nil, err
  }

  outcome, err := s.coordinator.ApplyAnswer(ctx, userID, session.CurrentCategory, evidence)
  if err != nil {
    return nil, err
  }

  delta := outcome.Confidence - session.LastConfidence
  if delta < 0 {
    delta = -delta
  }
  session.RecentConfidenceDeltas = append(session.RecentConfidenceDeltas, delta)
  if len(session.RecentConfidenceDeltas) > plateauWindowSize {
    session.RecentConfidenceDeltas = session.RecentConfidenceDeltas[len(session.RecentConfidenceDeltas)-plateauWindowSize:]
  }
  session.LastConfidence = outcome.Confidence
  session.QuestionsAsked++

  result := &AnswerResult{
    ConfidenceScore: outcome.Confidence,
    QuestionsAsked:  session.QuestionsAsked,
  }

  stop := ShouldStop(outcome.Confidence, session.QuestionsAsked, session.RecentConfidenceDeltas)
  if !stop && outcome.NextStrategy != nil {
    session.NextStrategy = outcome.NextStrategy
    result.ShouldContinue = true
    result.NextQuestionType = outcome.NextStrategy.QuestionType
    result.NextQueries = outcome.NextStrategy.Queries
    result.NextMessage = outcome.NextStrategy.Message
  } else {
    s.advanceCategory(session, result)
  }

  if err := s.sessions.Put(ctx, session); err != nil {
    return nil, err
  }
  return result, nil
}

func (s *onboardingService) SkipCategory(ctx context.Context, userID uuid.UUID) (*AnswerResult, error) {
  lock := s.userLock(userID)
  lock.Lock()
  defer lock.Unlock()

  session, err := s.discoverSession(ctx, userID)
  if err != nil {
    return nil, err
  }

  result := &AnswerResult{}
  s.advanceCategory(session, result)
  if err := s.sessions.Put(ctx, session); err != nil {
    return nil, err
  }
  s.log.Info("Category skipped", "user_id", userID, "next_category", result.NextCategory)
  return result, nil
}

// RequestDifferentResults folds the currently shown batch into the exclusion
// set and fetches a replacement question without consuming a question slot.
func (s *onboardingService) RequestDifferentResults(ctx context.Context, userID uuid.UUID) (*Question, error) {
  lock := s.userLock(userID)
  lock.Lock()
  defer lock.Unlock()

  session, err := s.discoverSession(ctx, userID)
  if err != nil {
    return nil, err
  }
  session.ExcludedPlaceIDs = unionIDs(session.ExcludedPlaceIDs, session.LastShownPlaceIDs)
  session.LastShownPlaceIDs = nil
  if err := s.sessions.Put(ctx, session); err != nil {
    return nil, err
  }
  return s.getQuestionLocked(ctx, userID, GetQuestionOptions{})
}

func (s *onboardingService) Complete(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error) {
  lock := s.userLock(userID)
  lock.Lock()
  defer lock.Unlock()

  session, err := s.sessions.Get(ctx, userID)
  if err != nil {
    return nil, err
  }
  if session == nil {
    return nil, apierr.ErrSessionNotFound
  }
  session.CurrentStep = types.StepComplete
  session.Completed = true
  session.NextStrategy = nil
  if err := s.sessions.Put(ctx, session); err != nil {
    return nil, err
  }
  s.log.Info("Onboarding completed", "user_id", userID)
  return session, nil
}

func (s *onboardingService) State(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error) {
  session, err := s.sessions.Get(ctx, userID)
  if err != nil {
    return nil, err
  }
  if session == nil {
    return nil, apierr.ErrSessionNotFound
  }
  return session, nil
}

// advanceCategory implements the stop branch: move to the next selected
// category with fresh per-category state, or finish onboarding when none
// remains.
func (s *onboardingService) advanceCategory(session *types.OnboardingSession, result *AnswerResult) {
  next := session.NextCategory()
  session.QuestionsAsked = 0
  session.ExcludedPlaceIDs = nil
  session.LastShownPlaceIDs = nil
  session.RecentConfidenceDeltas = nil
  session.LastConfidence = 0
  session.NextStrategy = nil

  if next != "" {
    session.CurrentCategory = next
    result.CategoryComplete = true
    result.NextCategory = next
    return
  }
  session.CurrentStep = types.StepComplete
  session.Completed = true
  result.CategoryComplete = true
  result.OnboardingComplete = true
}

func (s *onboardingService) discoverSession(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error) {
  session, err := s.sessions.Get(ctx, userID)
  if err != nil {
    return nil, err
  }
  if session == nil {
    return nil, apierr.ErrSessionNotFound
  }
  if session.CurrentStep != types.StepDiscover {
    if session.CurrentStep == types.StepCategories || session.CurrentStep == types.StepLocation {
      return nil, apierr.ErrProfileNotInitialized
    }
    return nil, fmt.Errorf("%w: onboarding already complete", apierr.ErrInvalidArgument)
  }
  if session.CurrentCategory == "" {
    return nil, fmt.Errorf("%w: session has no active category", apierr.ErrInvalidArgument)
  }
  return session, nil
}

func (s *onboardingService) residentialLocation(ctx context.Context, user *types.User) (*types.LatLng, error) {
  if user.ResidentialPlaceID == "" {
    return nil, fmt.Errorf("%w: residential place not set", apierr.ErrInvalidArgument)
  }
  location, err := s.provider.PlaceLocation(ctx, user.ResidentialPlaceID)
  if err != nil {
    return nil, err
  }
  return location, nil
}

func (s *onboardingService) messageTypeFor(questionType types.QuestionType, questionNumber int) MessageType {
  if questionNumber == 1 {
    return MessageQuestionIntro
  }
  if questionType == types.QuestionABComparison {
    return MessageComparisonIntro
  }
  if questionNumber > nearingCompletionAfter {
    return MessageNearingCompletion
  }
  s.rngMu.Lock()
  flip := s.rng.Intn(2)
  s.rngMu.Unlock()
  if flip == 0 {
    return MessageStyleContrast
  }
  return MessageContinueExploring
}

func unionIDs(existing []string, extra []string) []string {
  if len(extra) == 0 {
    return existing
  }
  seen := make(map[string]bool, len(existing)+len(extra))
  out := make([]string, 0, len(existing)+len(extra))
  for _, id := range existing {
    if !seen[id] {
      seen[id] = true
      out = append(out, id)
    }
  }
  for _, id := range extra {
    if !seen[id] {
      seen[id] = true
      out = append(out, id)
    }
  }
  return out
}

// cityName takes the leading segment of a stored residential place label,
// e.g. "Brooklyn, NY, USA" -> "Brooklyn".
func cityName(residentialPlace string) string {
  if i := strings.Index(residentialPlace, ","); i >= 0 {
    return strings.TrimSpace(residentialPlace[:i])
  }
  return strings.TrimSpace(residentialPlace)
}
