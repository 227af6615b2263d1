package services

import (
  "context"
  "errors"
  "strings"
  "testing"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/types"
)

type fakeProfileRepo struct {
  rows       []types.TasteProfileVersion
  appendErrs []error
  appends    int
}

func (f *fakeProfileRepo) GetLatest(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.TasteProfileVersion, error) {
  var latest *types.TasteProfileVersion
  for i := range f.rows {
    row := &f.rows[i]
    if row.UserID != userID {
      continue
    }
    if latest == nil || row.Version > latest.Version {
      latest = row
    }
  }
  if latest == nil {
    return nil, nil
  }
  copied := *latest
  return &copied, nil
}

func (f *fakeProfileRepo) Append(ctx context.Context, tx *gorm.DB, row *types.TasteProfileVersion) error {
  f.appends++
  if len(f.appendErrs) > 0 {
    err := f.appendErrs[0]
    f.appendErrs = f.appendErrs[1:]
    if err != nil {
      return err
    }
  }
  for _, existing := range f.rows {
    if existing.UserID == row.UserID && existing.Version == row.Version {
      return repos.ErrVersionConflict
    }
  }
  f.rows = append(f.rows, *row)
  return nil
}

func testProfileService(t *testing.T, repo repos.TasteProfileRepo, openai OpenAIClient) TasteProfileService {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  if openai == nil {
    openai = &fakeOpenAI{textErr: errors.New("unavailable")}
  }
  return NewTasteProfileService(log, repo, openai)
}

func TestInitializeCreatesVersionOne(t *testing.T) {
  repo := &fakeProfileRepo{}
  svc := testProfileService(t, repo, nil)
  userID := uuid.New()

  profile, err := svc.Initialize(context.Background(), userID, []types.PlaceCategory{"cafe", "bar"})
  if err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  if profile.Version != 1 {
    t.Errorf("version = %d, want 1", profile.Version)
  }
  if len(profile.Categories) != 2 {
    t.Errorf("categories = %v", profile.Categories)
  }
  for category, pref := range profile.Categories {
    if pref.ConfidenceScore != 0 {
      t.Errorf("%s confidence = %v, want 0", category, pref.ConfidenceScore)
    }
  }
  if profile.BioText != initialBioText {
    t.Errorf("bio text = %q", profile.BioText)
  }
}

func TestInitializeRejectsEmptyCategories(t *testing.T) {
  svc := testProfileService(t, &fakeProfileRepo{}, nil)
  _, err := svc.Initialize(context.Background(), uuid.New(), nil)
  if !errors.Is(err, apierr.ErrInvalidArgument) {
    t.Errorf("expected ErrInvalidArgument, got %v", err)
  }
}

func TestLatestOnMissingProfile(t *testing.T) {
  svc := testProfileService(t, &fakeProfileRepo{}, nil)
  _, err := svc.Latest(context.Background(), uuid.New())
  if !errors.Is(err, apierr.ErrProfileNotInitialized) {
    t.Errorf("expected ErrProfileNotInitialized, got %v", err)
  }
}

func TestUpdateCategoryAppendsNewVersion(t *testing.T) {
  repo := &fakeProfileRepo{}
  svc := testProfileService(t, repo, nil)
  userID := uuid.New()

  if _, err := svc.Initialize(context.Background(), userID, []types.PlaceCategory{"cafe"}); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  updated, err := svc.UpdateCategory(context.Background(), userID, "cafe", types.CategoryPreference{
    Keywords:        []string{"specialty coffee"},
    ConfidenceScore: 0.6,
  })
  if err != nil {
    t.Fatalf("UpdateCategory: %v", err)
  }
  if updated.Version != 2 {
    t.Errorf("version = %d, want 2", updated.Version)
  }

  latest, err := svc.Latest(context.Background(), userID)
  if err != nil {
    t.Fatalf("Latest: %v", err)
  }
  if latest.Version != 2 {
    t.Errorf("latest version = %d, want 2", latest.Version)
  }
  if latest.Categories["cafe"].ConfidenceScore != 0.6 {
    t.Errorf("stored confidence = %v", latest.Categories["cafe"].ConfidenceScore)
  }
  if len(repo.rows) != 2 {
    t.Errorf("expected 2 stored versions, got %d", len(repo.rows))
  }
}

func TestUpdateCategoryRetriesOnceOnVersionConflict(t *testing.T) {
  repo := &fakeProfileRepo{appendErrs: []error{nil, repos.ErrVersionConflict}}
  svc := testProfileService(t, repo, nil)
  userID := uuid.New()

  if _, err := svc.Initialize(context.Background(), userID, []types.PlaceCategory{"cafe"}); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  updated, err := svc.UpdateCategory(context.Background(), userID, "cafe", types.CategoryPreference{ConfidenceScore: 0.5})
  if err != nil {
    t.Fatalf("UpdateCategory after one conflict: %v", err)
  }
  if updated.Version != 2 {
    t.Errorf("version = %d, want 2", updated.Version)
  }
  if repo.appends != 3 {
    t.Errorf("appends = %d, want 3 (init + conflict + retry)", repo.appends)
  }
}

func TestUpdateCategoryGivesUpAfterSecondConflict(t *testing.T) {
  repo := &fakeProfileRepo{appendErrs: []error{nil, repos.ErrVersionConflict, repos.ErrVersionConflict}}
  svc := testProfileService(t, repo, nil)
  userID := uuid.New()

  if _, err := svc.Initialize(context.Background(), userID, []types.PlaceCategory{"cafe"}); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  _, err := svc.UpdateCategory(context.Background(), userID, "cafe", types.CategoryPreference{ConfidenceScore: 0.5})
  if !errors.Is(err, repos.ErrVersionConflict) {
    t.Errorf("expected ErrVersionConflict, got %v", err)
  }
}

func TestBioTextFallsBackToDigestWhenModelFails(t *testing.T) {
  repo := &fakeProfileRepo{}
  svc := testProfileService(t, repo, &fakeOpenAI{textErr: errors.New("timeout")})
  userID := uuid.New()

  if _, err := svc.Initialize(context.Background(), userID, []types.PlaceCategory{"cafe"}); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  updated, err := svc.UpdateCategory(context.Background(), userID, "cafe", types.CategoryPreference{
    Keywords:         []string{"minimalist", "quiet"},
    StylePreferences: "prefers calm minimalist rooms",
    ConfidenceScore:  0.7,
  })
  if err != nil {
    t.Fatalf("UpdateCategory: %v", err)
  }
  if !strings.Contains(updated.BioText, "prefers calm minimalist rooms") {
    t.Errorf("bio text should carry the structured digest, got %q", updated.BioText)
  }
}

func TestBioTextStaysInitialBelowMaterialThreshold(t *testing.T) {
  repo := &fakeProfileRepo{}
  svc := testProfileService(t, repo, &fakeOpenAI{textResult: "should not be called"})
  userID := uuid.New()

  if _, err := svc.Initialize(context.Background(), userID, []types.PlaceCategory{"cafe"}); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  updated, err := svc.UpdateCategory(context.Background(), userID, "cafe", types.CategoryPreference{
    StylePreferences: "too early to tell",
    ConfidenceScore:  0.2,
  })
  if err != nil {
    t.Fatalf("UpdateCategory: %v", err)
  }
  if updated.BioText != initialBioText {
    t.Errorf("bio text = %q, want initial placeholder", updated.BioText)
  }
}

func TestBioTextUsesModelSummaryWhenAvailable(t *testing.T) {
  repo := &fakeProfileRepo{}
  svc := testProfileService(t, repo, &fakeOpenAI{textResult: "You gravitate toward quiet, minimalist cafes."})
  userID := uuid.New()

  if _, err := svc.Initialize(context.Background(), userID, []types.PlaceCategory{"cafe"}); err != nil {
    t.Fatalf("Initialize: %v", err)
  }
  updated, err := svc.UpdateCategory(context.Background(), userID, "cafe", types.CategoryPreference{
    StylePreferences: "minimalist",
    ConfidenceScore:  0.8,
  })
  if err != nil {
    t.Fatalf("UpdateCategory: %v", err)
  }
  if updated.BioText != "You gravitate toward quiet, minimalist cafes." {
    t.Errorf("bio text = %q", updated.BioText)
  }
}
