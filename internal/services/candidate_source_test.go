package services

import (
  "context"
  "errors"
  "fmt"
  "testing"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

type fakeProvider struct {
  nearby   func(params NearbySearchParams) ([]types.PlaceCandidate, error)
  text     func(params TextSearchParams) ([]types.PlaceCandidate, error)
  location *types.LatLng
}

func (f *fakeProvider) SearchNearby(ctx context.Context, params NearbySearchParams) ([]types.PlaceCandidate, error) {
  if f.nearby == nil {
    return nil, nil
  }
  return f.nearby(params)
}

func (f *fakeProvider) SearchText(ctx context.Context, params TextSearchParams) ([]types.PlaceCandidate, error) {
  if f.text == nil {
    return nil, nil
  }
  return f.text(params)
}

func (f *fakeProvider) PlaceDetails(ctx context.Context, placeID string) (*types.PlaceCandidate, error) {
  return nil, apierr.ErrNotFound
}

func (f *fakeProvider) PlaceLocation(ctx context.Context, placeID string) (*types.LatLng, error) {
  if f.location != nil {
    return f.location, nil
  }
  return nil, apierr.ErrNotFound
}

func (f *fakeProvider) Autocomplete(ctx context.Context, input string, includedPrimaryTypes []string, bias *types.LatLng, biasRadiusMeters float64) ([]types.AutocompleteSuggestion, error) {
  return nil, nil
}

func candidate(id string, photos int) types.PlaceCandidate {
  c := types.PlaceCandidate{PlaceID: id, DisplayName: "Place " + id}
  for i := 0; i < photos; i++ {
    c.Photos = append(c.Photos, fmt.Sprintf("https://photos.example/%s/%d", id, i))
  }
  return c
}

func testSource(t *testing.T, provider PlaceSearchProvider) CandidateSource {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  return NewCandidateSource(log, provider)
}

func TestFetchNearbyDropsCandidatesWithoutPhotos(t *testing.T) {
  provider := &fakeProvider{
    nearby: func(params NearbySearchParams) ([]types.PlaceCandidate, error) {
      return []types.PlaceCandidate{
        candidate("a", 2),
        candidate("no-photos", 0),
        candidate("b", 6),
        candidate("c", 1),
        candidate("d", 1),
      }, nil
    },
  }
  cs := testSource(t, provider)

  got, err := cs.FetchNearby(context.Background(), "cafe", types.LatLng{Lat: 40.7, Lng: -74.0}, 4, nil)
  if err != nil {
    t.Fatalf("FetchNearby: %v", err)
  }
  if len(got) != 4 {
    t.Fatalf("expected 4 candidates, got %d", len(got))
  }
  for _, c := range got {
    if c.PlaceID == "no-photos" {
      t.Errorf("candidate without photos was not filtered out")
    }
    if len(c.Photos) == 0 {
      t.Errorf("candidate %s has no photos", c.PlaceID)
    }
    if len(c.Photos) > 4 {
      t.Errorf("candidate %s carries %d photos, want at most 4", c.PlaceID, len(c.Photos))
    }
  }
}

func TestFetchNearbyScarceResultsReturnsPartial(t *testing.T) {
  provider := &fakeProvider{
    nearby: func(params NearbySearchParams) ([]types.PlaceCandidate, error) {
      return []types.PlaceCandidate{candidate("only-one", 1), candidate("only-two", 1)}, nil
    },
  }
  cs := testSource(t, provider)

  got, err := cs.FetchNearby(context.Background(), "bar", types.LatLng{}, 4, nil)
  if !errors.Is(err, apierr.ErrInsufficientCandidates) {
    t.Fatalf("expected ErrInsufficientCandidates, got %v", err)
  }
  if len(got) != 2 {
    t.Fatalf("expected the 2 found candidates alongside the error, got %d", len(got))
  }
}

func TestFetchNearbyExpandsRadiusOnEmptyResults(t *testing.T) {
  var radii []float64
  provider := &fakeProvider{
    nearby: func(params NearbySearchParams) ([]types.PlaceCandidate, error) {
      radii = append(radii, params.RadiusMeters)
      if params.RadiusMeters < 20000 {
        return nil, nil
      }
      return []types.PlaceCandidate{
        candidate("w", 1), candidate("x", 1), candidate("y", 1), candidate("z", 1),
      }, nil
    },
  }
  cs := testSource(t, provider)

  got, err := cs.FetchNearby(context.Background(), "museum", types.LatLng{}, 4, nil)
  if err != nil {
    t.Fatalf("FetchNearby: %v", err)
  }
  if len(got) != 4 {
    t.Fatalf("expected 4 candidates, got %d", len(got))
  }
  if radii[0] != 5000 {
    t.Errorf("first attempt radius = %v, want 5000", radii[0])
  }
  last := radii[len(radii)-1]
  if last != 20000 {
    t.Errorf("final radius = %v, want 20000", last)
  }
  for i := 1; i < len(radii); i++ {
    if radii[i] < radii[i-1] {
      t.Errorf("radius shrank between attempts: %v", radii)
    }
  }
}

func TestFetchNearbySkipsExcludedPlaces(t *testing.T) {
  provider := &fakeProvider{
    nearby: func(params NearbySearchParams) ([]types.PlaceCandidate, error) {
      return []types.PlaceCandidate{
        candidate("seen-before", 1), candidate("fresh-1", 1), candidate("fresh-2", 1),
      }, nil
    },
  }
  cs := testSource(t, provider)

  got, err := cs.FetchNearby(context.Background(), "cafe", types.LatLng{}, 2, []string{"seen-before"})
  if err != nil {
    t.Fatalf("FetchNearby: %v", err)
  }
  for _, c := range got {
    if c.PlaceID == "seen-before" {
      t.Fatalf("excluded place id resurfaced")
    }
  }
}

func TestFetchNearbyAllAttemptsFail(t *testing.T) {
  calls := 0
  transportErr := fmt.Errorf("%w: upstream 503", apierr.ErrProviderTransport)
  provider := &fakeProvider{
    nearby: func(params NearbySearchParams) ([]types.PlaceCandidate, error) {
      calls++
      return nil, transportErr
    },
  }
  cs := testSource(t, provider)

  _, err := cs.FetchNearby(context.Background(), "cafe", types.LatLng{}, 4, nil)
  if !errors.Is(err, apierr.ErrProviderTransport) {
    t.Fatalf("expected ErrProviderTransport, got %v", err)
  }
  if calls != maxFetchAttempts {
    t.Errorf("expected %d provider calls, got %d", maxFetchAttempts, calls)
  }
}

func TestFetchNearbyRecoversAfterTransientError(t *testing.T) {
  calls := 0
  provider := &fakeProvider{
    nearby: func(params NearbySearchParams) ([]types.PlaceCandidate, error) {
      calls++
      if calls == 1 {
        return nil, fmt.Errorf("%w: connection reset", apierr.ErrProviderTransport)
      }
      return []types.PlaceCandidate{candidate("a", 1), candidate("b", 1)}, nil
    },
  }
  cs := testSource(t, provider)

  got, err := cs.FetchNearby(context.Background(), "cafe", types.LatLng{}, 2, nil)
  if err != nil {
    t.Fatalf("expected recovery after transient error, got %v", err)
  }
  if len(got) != 2 {
    t.Fatalf("expected 2 candidates, got %d", len(got))
  }
}

func TestFetchByQueriesDeduplicatesAcrossQueries(t *testing.T) {
  provider := &fakeProvider{
    text: func(params TextSearchParams) ([]types.PlaceCandidate, error) {
      return []types.PlaceCandidate{candidate("shared", 1), candidate("u-"+params.TextQuery, 1)}, nil
    },
  }
  cs := testSource(t, provider)

  got, err := cs.FetchByQueries(context.Background(), "cafe", "Brooklyn", types.LatLng{},
    []string{"cozy quiet", "minimalist specialty"}, 3, nil)
  if err != nil {
    t.Fatalf("FetchByQueries: %v", err)
  }
  seen := map[string]int{}
  for _, c := range got {
    seen[c.PlaceID]++
  }
  for id, n := range seen {
    if n > 1 {
      t.Errorf("place %s appears %d times", id, n)
    }
  }
  if len(got) != 3 {
    t.Fatalf("expected 3 candidates, got %d", len(got))
  }
}

func TestFetchByQueriesPartialQueryFailure(t *testing.T) {
  provider := &fakeProvider{
    text: func(params TextSearchParams) ([]types.PlaceCandidate, error) {
      if params.TextQuery[0] == 'b' {
        return nil, fmt.Errorf("%w: timeout", apierr.ErrProviderTransport)
      }
      return []types.PlaceCandidate{candidate("a1", 1)}, nil
    },
  }
  cs := testSource(t, provider)

  got, err := cs.FetchByQueries(context.Background(), "bar", "Austin", types.LatLng{},
    []string{"a dive bars", "broken query"}, 2, nil)
  if !errors.Is(err, apierr.ErrInsufficientCandidates) {
    t.Fatalf("expected ErrInsufficientCandidates from partial failure, got %v", err)
  }
  if len(got) != 1 {
    t.Fatalf("expected 1 candidate from the healthy query, got %d", len(got))
  }
}

func TestFetchByQueriesAllQueriesFail(t *testing.T) {
  provider := &fakeProvider{
    text: func(params TextSearchParams) ([]types.PlaceCandidate, error) {
      return nil, fmt.Errorf("%w: upstream 500", apierr.ErrProviderTransport)
    },
  }
  cs := testSource(t, provider)

  _, err := cs.FetchByQueries(context.Background(), "bar", "Austin", types.LatLng{},
    []string{"q1", "q2"}, 2, nil)
  if !errors.Is(err, apierr.ErrProviderTransport) {
    t.Fatalf("expected ErrProviderTransport, got %v", err)
  }
}

func TestFetchByQueriesEmptyQueryListFallsBackToNearby(t *testing.T) {
  nearbyCalled := false
  provider := &fakeProvider{
    nearby: func(params NearbySearchParams) ([]types.PlaceCandidate, error) {
      nearbyCalled = true
      return []types.PlaceCandidate{candidate("a", 1), candidate("b", 1)}, nil
    },
  }
  cs := testSource(t, provider)

  _, err := cs.FetchByQueries(context.Background(), "cafe", "Paris", types.LatLng{}, nil, 2, nil)
  if err != nil {
    t.Fatalf("FetchByQueries: %v", err)
  }
  if !nearbyCalled {
    t.Fatalf("expected fallback to nearby search")
  }
}
