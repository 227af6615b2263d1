package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "sort"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/types"
)

const (
  initialBioText       = "User preference learning in progress."
  bioMaterialThreshold = 0.3
  bioTextMaxTokens     = 150

  bioSystemPrompt = "You create friendly, natural summaries of user preferences. Be concise and warm."
)

// TasteProfileService is the BIO store adapter. Versions are append-only:
// every write creates version latest+1, never mutates an existing row. A
// concurrent writer landing the same version first turns into a version
// conflict, which UpdateCategory absorbs with a single re-read-and-retry.
type TasteProfileService interface {
  Initialize(ctx context.Context, userID uuid.UUID, categories []types.PlaceCategory) (*types.TasteProfile, error)
  Latest(ctx context.Context, userID uuid.UUID) (*types.TasteProfile, error)
  UpdateCategory(ctx context.Context, userID uuid.UUID, category types.PlaceCategory, pref types.CategoryPreference) (*types.TasteProfile, error)
}

type tasteProfileService struct {
  log    *logger.Logger
  repo   repos.TasteProfileRepo
  openai OpenAIClient
}

func NewTasteProfileService(log *logger.Logger, repo repos.TasteProfileRepo, openai OpenAIClient) TasteProfileService {
  serviceLog := log.With("service", "TasteProfileService")
  return &tasteProfileService{log: serviceLog, repo: repo, openai: openai}
}

// Initialize writes a fresh profile version covering exactly the given
// categories, each at zero confidence. Re-onboarding appends a new version on
// top of the old history rather than rewriting it.
func (s *tasteProfileService) Initialize(ctx context.Context, userID uuid.UUID, categories []types.PlaceCategory) (*types.TasteProfile, error) {
  if len(categories) == 0 {
    return nil, fmt.Errorf("%w: no categories selected", apierr.ErrInvalidArgument)
  }
  profile := &types.TasteProfile{
    UserID:     userID,
    BioText:    initialBioText,
    Categories: make(map[types.PlaceCategory]types.CategoryPreference, len(categories)),
  }
  for _, category := range categories {
    profile.Categories[category] = types.CategoryPreference{
      Keywords:            []string{},
      PreferredAttributes: []string{},
    }
  }

  for attempt := 0; attempt < 2; attempt++ {
    latest, err := s.repo.GetLatest(ctx, nil, userID)
    if err != nil {
      return nil, err
    }
    profile.Version = 1
    if latest != nil {
      profile.Version = latest.Version + 1
    }
    err = s.append(ctx, profile)
    if err == nil {
      return profile, nil
    }
    if !errors.Is(err, repos.ErrVersionConflict) || attempt == 1 {
      return nil, err
    }
    s.log.Warn("Version conflict initializing profile, retrying", "user_id", userID, "version", profile.Version)
  }
  return profile, nil
}

func (s *tasteProfileService) Latest(ctx context.Context, userID uuid.UUID) (*types.TasteProfile, error) {
  row, err := s.repo.GetLatest(ctx, nil, userID)
  if err != nil {
    return nil, err
  }
  if row == nil {
    return nil, apierr.ErrProfileNotInitialized
  }
  return decodeProfileRow(row)
}

// UpdateCategory replaces one category's preference wholesale, regenerates
// the bio text, and appends the result as a new version. On a version
// conflict the whole read-modify-write runs once more against the newer base.
func (s *tasteProfileService) UpdateCategory(ctx context.Context, userID uuid.UUID, category types.PlaceCategory, pref types.CategoryPreference) (*types.TasteProfile, error) {
  for attempt := 0; attempt < 2; attempt++ {
    profile, err := s.Latest(ctx, userID)
    if err != nil {
      return nil, err
    }
    profile.Categories[category] = pref
    profile.BioText = s.generateBioText(ctx, profile)
    profile.Version++

    err = s.append(ctx, profile)
    if err == nil {
      return profile, nil
    }
    if !errors.Is(err, repos.ErrVersionConflict) || attempt == 1 {
      return nil, err
    }
    s.log.Warn("Version conflict updating profile, retrying against newer base", "user_id", userID, "version", profile.Version)
  }
  return nil, repos.ErrVersionConflict
}

func (s *tasteProfileService) append(ctx context.Context, profile *types.TasteProfile) error {
  encoded, err := json.Marshal(profile.Categories)
  if err != nil {
    return fmt.Errorf("encoding profile categories: %w", err)
  }
  profile.LastUpdated = time.Now().UTC()
  return s.repo.Append(ctx, nil, &types.TasteProfileVersion{
    UserID:     profile.UserID,
    Version:    profile.Version,
    BioText:    profile.BioText,
    Categories: datatypes.JSON(encoded),
  })
}

// generateBioText renders the profile as a short human summary. Only
// categories with material confidence contribute; the model call is best
// effort and falls back to the structured digest on failure.
func (s *tasteProfileService) generateBioText(ctx context.Context, profile *types.TasteProfile) string {
  digest := profileDigest(profile)
  if digest == "" {
    return initialBioText
  }

  prompt := fmt.Sprintf(`Create a natural, human-readable 2-3 sentence summary of this user's place preferences:

%s

Make it sound personal and helpful, not robotic. Focus on their taste and style.`, digest)

  text, err := s.openai.GenerateText(ctx, bioSystemPrompt, prompt, 0.8, bioTextMaxTokens)
  if err != nil || strings.TrimSpace(text) == "" {
    s.log.Warn("Bio text generation failed, using structured digest", "user_id", profile.UserID, "error", err)
    return digest
  }
  return strings.TrimSpace(text)
}

func profileDigest(profile *types.TasteProfile) string {
  categories := make([]types.PlaceCategory, 0, len(profile.Categories))
  for category := range profile.Categories {
    categories = append(categories, category)
  }
  sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

  var lines []string
  for _, category := range categories {
    pref := profile.Categories[category]
    if pref.ConfidenceScore <= bioMaterialThreshold {
      continue
    }
    style := pref.StylePreferences
    if style == "" {
      style = "learning preferences"
    }
    keywords := pref.Keywords
    if len(keywords) > 5 {
      keywords = keywords[:5]
    }
    lines = append(lines, fmt.Sprintf("%s: %s (keywords: %s)", category, style, strings.Join(keywords, ", ")))
  }
  return strings.Join(lines, "\n")
}

func decodeProfileRow(row *types.TasteProfileVersion) (*types.TasteProfile, error) {
  profile := &types.TasteProfile{
    UserID:      row.UserID,
    Version:     row.Version,
    BioText:     row.BioText,
    Categories:  make(map[types.PlaceCategory]types.CategoryPreference),
    LastUpdated: row.CreatedAt,
  }
  if len(row.Categories) > 0 {
    if err := json.Unmarshal(row.Categories, &profile.Categories); err != nil {
      return nil, fmt.Errorf("decoding profile categories: %w", err)
    }
  }
  return profile, nil
}
