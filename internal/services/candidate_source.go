package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "golang.org/x/sync/errgroup"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/retry"
  "github.com/milaplaces/mila-backend/internal/types"
)

const (
  providerBatchSize = 20
  maxFetchAttempts  = 3
  fetchBackoff      = 100 * time.Millisecond

  baseRadiusMeters  = 5000.0
  maxRadiusMeters   = 50000.0
  maxRadiusAttempts = 5

  maxPhotosPerCandidate  = 4
  maxReviewsPerCandidate = 3
)

// CandidateSource guarantees enough presentable (photo-bearing,
// non-duplicate) venues per question. A short result is returned alongside
// an InsufficientCandidates error so callers can degrade gracefully instead
// of failing the question.
type CandidateSource interface {
  FetchNearby(ctx context.Context, category types.PlaceCategory, location types.LatLng, required int, excluded []string) ([]types.PlaceCandidate, error)
  FetchByQueries(ctx context.Context, category types.PlaceCategory, city string, location types.LatLng, queries []string, required int, excluded []string) ([]types.PlaceCandidate, error)
}

type candidateSource struct {
  log      *logger.Logger
  provider PlaceSearchProvider
}

func NewCandidateSource(log *logger.Logger, provider PlaceSearchProvider) CandidateSource {
  serviceLog := log.With("service", "CandidateSource")
  return &candidateSource{log: serviceLog, provider: provider}
}

// FetchNearby is the category-only lookup: nearby search ranked by
// popularity, expanding the radius (doubling, capped) while the provider
// returns zero raw results.
func (cs *candidateSource) FetchNearby(ctx context.Context, category types.PlaceCategory, location types.LatLng, required int, excluded []string) ([]types.PlaceCandidate, error) {
  includedTypes := []string{string(category)}
  if info := types.GetCategoryInfo(category); info != nil {
    includedTypes = info.GoogleTypes
  }

  radius := baseRadiusMeters
  var found []types.PlaceCandidate

  err := retry.Do(ctx, retry.Config{MaxAttempts: maxRadiusAttempts}, func(attempt int) (bool, error) {
    batch, rawCount, err := cs.fetchWithPhotos(ctx, required, excluded, func(ctx context.Context) ([]types.PlaceCandidate, error) {
      return cs.provider.SearchNearby(ctx, NearbySearchParams{
        Latitude:       location.Lat,
        Longitude:      location.Lng,
        RadiusMeters:   radius,
        IncludedTypes:  includedTypes,
        MaxResultCount: providerBatchSize,
      })
    })
    if err != nil {
      return false, err
    }
    found = batch
    if rawCount == 0 && radius < maxRadiusMeters {
      cs.log.Debug("No raw results, expanding radius", "category", category, "radius", radius)
      radius *= 2
      if radius > maxRadiusMeters {
        radius = maxRadiusMeters
      }
      return false, nil
    }
    return true, nil
  })
  if err != nil {
    return nil, err
  }
  return cs.finish(category, found, required)
}

// FetchByQueries runs the inference-supplied queries in parallel, each asking
// for its share of the quota, then flattens and deduplicates by place id
// keeping first occurrence.
func (cs *candidateSource) FetchByQueries(ctx context.Context, category types.PlaceCategory, city string, location types.LatLng, queries []string, required int, excluded []string) ([]types.PlaceCandidate, error) {
  if len(queries) == 0 {
    return cs.FetchNearby(ctx, category, location, required, excluded)
  }

  perQuery := (required + len(queries) - 1) / len(queries)
  results := make([][]types.PlaceCandidate, len(queries))
  errs := make([]error, len(queries))

  g, gctx := errgroup.WithContext(ctx)
  for i, query := range queries {
    g.Go(func() error {
      text := strings.TrimSpace(fmt.Sprintf("%s %s %s", query, category, city))
      batch, _, err := cs.fetchWithPhotos(gctx, perQuery, excluded, func(ctx context.Context) ([]types.PlaceCandidate, error) {
        return cs.provider.SearchText(ctx, TextSearchParams{
          TextQuery:        text,
          BiasLatitude:     location.Lat,
          BiasLongitude:    location.Lng,
          BiasRadiusMeters: baseRadiusMeters,
          MaxResultCount:   providerBatchSize,
        })
      })
      results[i] = batch
      errs[i] = err
      return nil
    })
  }
  _ = g.Wait()

  failures := 0
  var lastErr error
  for _, err := range errs {
    if err != nil {
      failures++
      lastErr = err
    }
  }
  if failures == len(queries) && lastErr != nil {
    return nil, lastErr
  }

  seen := make(map[string]bool, required)
  var merged []types.PlaceCandidate
  for _, batch := range results {
    for _, candidate := range batch {
      if seen[candidate.PlaceID] {
        continue
      }
      seen[candidate.PlaceID] = true
      merged = append(merged, candidate)
    }
  }
  return cs.finish(category, merged, required)
}

// fetchWithPhotos is the shared accumulator loop: up to maxFetchAttempts
// oversized provider batches, dropping candidates without photos or already
// seen, pausing briefly between attempts. A transport error surfaces only
// when every attempt errored.
func (cs *candidateSource) fetchWithPhotos(ctx context.Context, required int, excluded []string, search func(context.Context) ([]types.PlaceCandidate, error)) ([]types.PlaceCandidate, int, error) {
  seen := make(map[string]bool, len(excluded)+required)
  for _, id := range excluded {
    seen[id] = true
  }

  var accumulated []types.PlaceCandidate
  rawCount := 0

  err := retry.Do(ctx, retry.Config{MaxAttempts: maxFetchAttempts, Backoff: fetchBackoff}, func(attempt int) (bool, error) {
    batch, err := search(ctx)
    if err != nil {
      cs.log.Warn("Provider search attempt failed", "attempt", attempt+1, "error", err)
      return false, err
    }
    rawCount += len(batch)
    for _, candidate := range batch {
      if seen[candidate.PlaceID] || len(candidate.Photos) == 0 {
        continue
      }
      seen[candidate.PlaceID] = true
      accumulated = append(accumulated, presentable(candidate))
    }
    return len(accumulated) >= required, nil
  })
  if err != nil {
    return nil, rawCount, err
  }
  if len(accumulated) > required {
    accumulated = accumulated[:required]
  }
  return accumulated, rawCount, nil
}

func (cs *candidateSource) finish(category types.PlaceCategory, found []types.PlaceCandidate, required int) ([]types.PlaceCandidate, error) {
  if len(found) > required {
    found = found[:required]
  }
  if len(found) < required {
    cs.log.Warn("Candidate quota unmet", "category", category, "found", len(found), "required", required)
    return found, fmt.Errorf("%w: found %d of %d for %s", apierr.ErrInsufficientCandidates, len(found), required, category)
  }
  return found, nil
}

// presentable trims a candidate to the shape shown on a question card.
func presentable(c types.PlaceCandidate) types.PlaceCandidate {
  if len(c.Photos) > maxPhotosPerCandidate {
    c.Photos = c.Photos[:maxPhotosPerCandidate]
  }
  if len(c.Reviews) > maxReviewsPerCandidate {
    c.Reviews = c.Reviews[:maxReviewsPerCandidate]
  }
  return c
}
