package retry

import (
  "context"
  "time"
)

// Config bounds a retry loop. Backoff is the pause between attempts; when
// Double is set it doubles after every attempt, capped at MaxBackoff.
type Config struct {
  MaxAttempts int
  Backoff     time.Duration
  MaxBackoff  time.Duration
  Double      bool
}

// Do invokes fn until it reports done, the attempt budget is exhausted, or
// ctx is canceled. fn receives the zero-based attempt number. An error from
// fn is only surfaced if every attempt errored; any non-erroring attempt
// clears earlier failures, so partial progress across attempts is not treated
// as failure (the caller decides what to do with a short result).
func Do(ctx context.Context, cfg Config, fn func(attempt int) (done bool, err error)) error {
  if cfg.MaxAttempts <= 0 {
    cfg.MaxAttempts = 1
  }
  backoff := cfg.Backoff

  var lastErr error
  failures := 0
  for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
    if err := ctx.Err(); err != nil {
      return err
    }
    done, err := fn(attempt)
    if err != nil {
      lastErr = err
      failures++
    }
    if done {
      return nil
    }
    if attempt == cfg.MaxAttempts-1 || backoff <= 0 {
      continue
    }
    if err := sleep(ctx, backoff); err != nil {
      return err
    }
    if cfg.Double {
      backoff *= 2
      if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
        backoff = cfg.MaxBackoff
      }
    }
  }
  if failures == cfg.MaxAttempts && lastErr != nil {
    return lastErr
  }
  return nil
}

func sleep(ctx context.Context, d time.Duration) error {
  timer := time.NewTimer(d)
  defer timer.Stop()
  select {
  case <-ctx.Done():
    return ctx.Err()
  case <-timer.C:
    return nil
  }
}
