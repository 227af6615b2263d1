package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "math/rand"
  "testing"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

type fakeSessionRepo struct {
  sessions map[uuid.UUID][]byte
}

func newFakeSessionRepo() *fakeSessionRepo {
  return &fakeSessionRepo{sessions: make(map[uuid.UUID][]byte)}
}

func (f *fakeSessionRepo) Get(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error) {
  raw, ok := f.sessions[userID]
  if !ok {
    return nil, nil
  }
  var session types.OnboardingSession
  if err := json.Unmarshal(raw, &session); err != nil {
    return nil, err
  }
  return &session, nil
}

func (f *fakeSessionRepo) Put(ctx context.Context, session *types.OnboardingSession) error {
  raw, err := json.Marshal(session)
  if err != nil {
    return err
  }
  f.sessions[session.UserID] = raw
  return nil
}

type fakeUserRepo struct {
  user *types.User
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
  return users, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error) {
  if f.user != nil && f.user.ID == userID {
    copied := *f.user
    return &copied, nil
  }
  return nil, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
  return nil, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
  return false, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, tx *gorm.DB, user *types.User) error {
  f.user = user
  return nil
}

type fakeCandidateSource struct {
  counter      int
  lastRequired int
  lastExcluded []string
  lastQueries  []string
  err          error
}

func (f *fakeCandidateSource) batch(required int) []types.PlaceCandidate {
  out := make([]types.PlaceCandidate, 0, required)
  for i := 0; i < required; i++ {
    f.counter++
    out = append(out, candidate(fmt.Sprintf("p-%d", f.counter), 1))
  }
  return out
}

func (f *fakeCandidateSource) FetchNearby(ctx context.Context, category types.PlaceCategory, location types.LatLng, required int, excluded []string) ([]types.PlaceCandidate, error) {
  f.lastRequired = required
  f.lastExcluded = excluded
  f.lastQueries = nil
  if f.err != nil {
    return nil, f.err
  }
  return f.batch(required), nil
}

func (f *fakeCandidateSource) FetchByQueries(ctx context.Context, category types.PlaceCategory, city string, location types.LatLng, queries []string, required int, excluded []string) ([]types.PlaceCandidate, error) {
  f.lastRequired = required
  f.lastExcluded = excluded
  f.lastQueries = queries
  if f.err != nil {
    return nil, f.err
  }
  return f.batch(required), nil
}

type fakeCoordinator struct {
  outcome *UpdateOutcome
  err     error
  calls   int
}

func (f *fakeCoordinator) ApplyAnswer(ctx context.Context, userID uuid.UUID, category types.PlaceCategory, evidence InferenceEvidence) (*UpdateOutcome, error) {
  f.calls++
  return f.outcome, f.err
}

type onboardingFixture struct {
  svc         OnboardingService
  sessions    *fakeSessionRepo
  users       *fakeUserRepo
  source      *fakeCandidateSource
  coordinator *fakeCoordinator
  userID      uuid.UUID
}

func newOnboardingFixture(t *testing.T) *onboardingFixture {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  messages, err := NewMessageSelector(rand.New(rand.NewSource(1)))
  if err != nil {
    t.Fatalf("NewMessageSelector: %v", err)
  }

  userID := uuid.New()
  users := &fakeUserRepo{user: &types.User{
    ID:                 userID,
    Email:              "test@example.com",
    Name:               "Test",
    ResidentialPlace:   "Brooklyn, NY, USA",
    ResidentialPlaceID: "home-place",
  }}
  sessions := newFakeSessionRepo()
  source := &fakeCandidateSource{}
  coordinator := &fakeCoordinator{}
  profiles := testProfileService(t, &fakeProfileRepo{}, nil)
  provider := &fakeProvider{location: &types.LatLng{Lat: 40.68, Lng: -73.94}}

  svc := NewOnboardingService(log, sessions, users, source, coordinator, profiles, messages, provider, rand.New(rand.NewSource(2)))
  return &onboardingFixture{
    svc:         svc,
    sessions:    sessions,
    users:       users,
    source:      source,
    coordinator: coordinator,
    userID:      userID,
  }
}

func (fx *onboardingFixture) startDiscover(t *testing.T, categories ...types.PlaceCategory) {
  t.Helper()
  if _, err := fx.svc.Initialize(context.Background(), fx.userID); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  if _, err := fx.svc.SelectCategories(context.Background(), fx.userID, categories); err != nil {
    t.Fatalf("SelectCategories: %v", err)
  }
}

func TestInitializeEntersLocationWhenResidenceUnset(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.users.user.ResidentialPlaceID = ""

  session, err := fx.svc.Initialize(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  if session.CurrentStep != types.StepLocation {
    t.Errorf("step = %s, want location", session.CurrentStep)
  }
}

func TestInitializeEntersCategoriesWhenResidenceSet(t *testing.T) {
  fx := newOnboardingFixture(t)

  session, err := fx.svc.Initialize(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  if session.CurrentStep != types.StepCategories {
    t.Errorf("step = %s, want categories", session.CurrentStep)
  }
}

func TestInitializeResetsActiveSessionForRetake(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")

  session, err := fx.svc.Initialize(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  if session.CurrentStep != types.StepCategories {
    t.Errorf("re-initialize kept the old session, step = %s, want categories", session.CurrentStep)
  }
  if session.QuestionsAsked != 0 || session.CurrentCategory != "" {
    t.Errorf("re-initialize did not clear progress: %+v", session)
  }
}

func TestSelectCategoriesMovesToDiscover(t *testing.T) {
  fx := newOnboardingFixture(t)
  if _, err := fx.svc.Initialize(context.Background(), fx.userID); err != nil {
    t.Fatalf("Initialize: %v", err)
  }

  session, err := fx.svc.SelectCategories(context.Background(), fx.userID, []types.PlaceCategory{"cafe", "bar"})
  if err != nil {
    t.Fatalf("SelectCategories: %v", err)
  }
  if session.CurrentStep != types.StepDiscover {
    t.Errorf("step = %s, want discover", session.CurrentStep)
  }
  if session.CurrentCategory != "cafe" {
    t.Errorf("current category = %s, want cafe", session.CurrentCategory)
  }
  if session.QuestionsAsked != 0 {
    t.Errorf("questions asked = %d, want 0", session.QuestionsAsked)
  }
}

func TestSelectCategoriesRejectsUnknownCategory(t *testing.T) {
  fx := newOnboardingFixture(t)
  if _, err := fx.svc.Initialize(context.Background(), fx.userID); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  _, err := fx.svc.SelectCategories(context.Background(), fx.userID, []types.PlaceCategory{"volcano"})
  if !errors.Is(err, apierr.ErrInvalidArgument) {
    t.Errorf("expected ErrInvalidArgument, got %v", err)
  }
}

func TestFirstQuestionIsMultiSelectWithFourCandidates(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")

  q, err := fx.svc.GetQuestion(context.Background(), fx.userID, GetQuestionOptions{})
  if err != nil {
    t.Fatalf("GetQuestion: %v", err)
  }
  if q.QuestionType != types.QuestionMultiSelect {
    t.Errorf("question type = %s, want multi-select", q.QuestionType)
  }
  if q.QuestionNumber != 1 {
    t.Errorf("question number = %d, want 1", q.QuestionNumber)
  }
  if len(q.Candidates) != 4 {
    t.Errorf("candidates = %d, want 4", len(q.Candidates))
  }
  if q.Message == "" {
    t.Error("empty question message")
  }
  if len(fx.source.lastQueries) != 0 {
    t.Errorf("first question must use nearby popularity, got queries %v", fx.source.lastQueries)
  }
}

func TestGetQuestionAccumulatesExclusions(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")

  shown := map[string]bool{}
  for i := 0; i < 3; i++ {
    q, err := fx.svc.GetQuestion(context.Background(), fx.userID, GetQuestionOptions{})
    if err != nil {
      t.Fatalf("GetQuestion %d: %v", i, err)
    }
    for _, c := range q.Candidates {
      if shown[c.PlaceID] {
        t.Fatalf("place %s shown twice within category", c.PlaceID)
      }
      shown[c.PlaceID] = true
    }
  }
  if len(fx.source.lastExcluded) != 8 {
    t.Errorf("third fetch saw %d exclusions, want 8", len(fx.source.lastExcluded))
  }
}

func TestSubmitAnswerContinuesWithStrategy(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")
  fx.coordinator.outcome = &UpdateOutcome{
    Confidence: 0.5,
    NextStrategy: &types.QuestionStrategy{
      QuestionType: types.QuestionABComparison,
      Queries:      []string{"cozy cafes", "modern cafes"},
      Message:      "Which feels more like you?",
    },
  }

  result, err := fx.svc.SubmitAnswer(context.Background(), fx.userID, selectionEvidence())
  if err != nil {
    t.Fatalf("SubmitAnswer: %v", err)
  }
  if !result.ShouldContinue {
    t.Fatal("expected to continue")
  }
  if result.QuestionsAsked != 1 {
    t.Errorf("questions asked = %d, want 1", result.QuestionsAsked)
  }
  if result.NextQuestionType != types.QuestionABComparison {
    t.Errorf("next type = %s", result.NextQuestionType)
  }

  q, err := fx.svc.GetQuestion(context.Background(), fx.userID, GetQuestionOptions{})
  if err != nil {
    t.Fatalf("GetQuestion: %v", err)
  }
  if q.QuestionType != types.QuestionABComparison {
    t.Errorf("strategy not honored, type = %s", q.QuestionType)
  }
  if len(q.Candidates) != 2 {
    t.Errorf("ab-comparison candidates = %d, want 2", len(q.Candidates))
  }
  if q.Message != "Which feels more like you?" {
    t.Errorf("strategy message not used, got %q", q.Message)
  }
  if len(fx.source.lastQueries) != 2 {
    t.Errorf("strategy queries not used: %v", fx.source.lastQueries)
  }
}

func TestSubmitAnswerHighConfidenceAdvancesCategory(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe", "bar")
  fx.coordinator.outcome = &UpdateOutcome{Confidence: 0.9}

  result, err := fx.svc.SubmitAnswer(context.Background(), fx.userID, selectionEvidence())
  if err != nil {
    t.Fatalf("SubmitAnswer: %v", err)
  }
  if result.ShouldContinue {
    t.Error("should not continue at 0.9 confidence")
  }
  if !result.CategoryComplete || result.NextCategory != "bar" {
    t.Errorf("expected advancement to bar, got %+v", result)
  }

  state, err := fx.svc.State(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("State: %v", err)
  }
  if state.CurrentCategory != "bar" {
    t.Errorf("current category = %s, want bar", state.CurrentCategory)
  }
  if state.QuestionsAsked != 0 {
    t.Errorf("questions asked not reset: %d", state.QuestionsAsked)
  }
  if len(state.ExcludedPlaceIDs) != 0 {
    t.Errorf("exclusions not cleared: %v", state.ExcludedPlaceIDs)
  }

  result, err = fx.svc.SubmitAnswer(context.Background(), fx.userID, selectionEvidence())
  if err != nil {
    t.Fatalf("SubmitAnswer (bar): %v", err)
  }
  if !result.OnboardingComplete {
    t.Error("expected onboarding completion after last category")
  }
  state, _ = fx.svc.State(context.Background(), fx.userID)
  if state.CurrentStep != types.StepComplete || !state.Completed {
    t.Errorf("terminal state not reached: %+v", state)
  }
}

func TestSubmitAnswerMissingStrategyAdvances(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")
  fx.coordinator.outcome = &UpdateOutcome{Confidence: 0.4}

  result, err := fx.svc.SubmitAnswer(context.Background(), fx.userID, selectionEvidence())
  if err != nil {
    t.Fatalf("SubmitAnswer: %v", err)
  }
  if result.ShouldContinue {
    t.Error("no strategy returned, interview must advance")
  }
  if !result.OnboardingComplete {
    t.Error("single category with no strategy should complete onboarding")
  }
}

func TestSubmitAnswerBeforeCategoriesSelected(t *testing.T) {
  fx := newOnboardingFixture(t)
  if _, err := fx.svc.Initialize(context.Background(), fx.userID); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  _, err := fx.svc.SubmitAnswer(context.Background(), fx.userID, selectionEvidence())
  if !errors.Is(err, apierr.ErrProfileNotInitialized) {
    t.Errorf("expected ErrProfileNotInitialized, got %v", err)
  }
}

func TestSubmitAnswerWithoutSession(t *testing.T) {
  fx := newOnboardingFixture(t)
  _, err := fx.svc.SubmitAnswer(context.Background(), fx.userID, selectionEvidence())
  if !errors.Is(err, apierr.ErrSessionNotFound) {
    t.Errorf("expected ErrSessionNotFound, got %v", err)
  }
}

func TestSubmitAnswerInferenceFailureKeepsSession(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")
  fx.coordinator.err = apierr.ErrInferenceFailure

  _, err := fx.svc.SubmitAnswer(context.Background(), fx.userID, selectionEvidence())
  if !errors.Is(err, apierr.ErrInferenceFailure) {
    t.Fatalf("expected ErrInferenceFailure, got %v", err)
  }
  state, err := fx.svc.State(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("State: %v", err)
  }
  if state.QuestionsAsked != 0 {
    t.Errorf("failed answer still counted: %d", state.QuestionsAsked)
  }
}

func TestSkipCategoryAdvancesWithoutInference(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe", "bar")

  result, err := fx.svc.SkipCategory(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("SkipCategory: %v", err)
  }
  if result.NextCategory != "bar" {
    t.Errorf("next category = %s, want bar", result.NextCategory)
  }
  if fx.coordinator.calls != 0 {
    t.Errorf("skip must bypass the coordinator, saw %d calls", fx.coordinator.calls)
  }
}

func TestRequestDifferentResultsExcludesShownBatch(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")

  first, err := fx.svc.GetQuestion(context.Background(), fx.userID, GetQuestionOptions{})
  if err != nil {
    t.Fatalf("GetQuestion: %v", err)
  }
  replacement, err := fx.svc.RequestDifferentResults(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("RequestDifferentResults: %v", err)
  }
  if replacement.QuestionNumber != first.QuestionNumber {
    t.Errorf("question number changed: %d -> %d", first.QuestionNumber, replacement.QuestionNumber)
  }
  firstIDs := map[string]bool{}
  for _, c := range first.Candidates {
    firstIDs[c.PlaceID] = true
  }
  for _, c := range replacement.Candidates {
    if firstIDs[c.PlaceID] {
      t.Errorf("replacement reuses shown place %s", c.PlaceID)
    }
  }
  for _, c := range first.Candidates {
    found := false
    for _, id := range fx.source.lastExcluded {
      if id == c.PlaceID {
        found = true
      }
    }
    if !found {
      t.Errorf("shown place %s missing from exclusion set", c.PlaceID)
    }
  }
}

func TestGetQuestionPartialBatchDegradesGracefully(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")
  fx.source.err = fmt.Errorf("%w: found 2 of 4", apierr.ErrInsufficientCandidates)

  q, err := fx.svc.GetQuestion(context.Background(), fx.userID, GetQuestionOptions{})
  if err != nil {
    t.Fatalf("insufficient candidates must not fail the question, got %v", err)
  }
  if !q.Insufficient {
    t.Error("expected the insufficient flag")
  }
}

func TestCompleteIsTerminal(t *testing.T) {
  fx := newOnboardingFixture(t)
  fx.startDiscover(t, "cafe")

  session, err := fx.svc.Complete(context.Background(), fx.userID)
  if err != nil {
    t.Fatalf("Complete: %v", err)
  }
  if session.CurrentStep != types.StepComplete || !session.Completed {
    t.Errorf("not terminal: %+v", session)
  }
  if _, err := fx.svc.GetQuestion(context.Background(), fx.userID, GetQuestionOptions{}); !errors.Is(err, apierr.ErrInvalidArgument) {
    t.Errorf("expected ErrInvalidArgument after completion, got %v", err)
  }
}
