package retry

import (
  "context"
  "errors"
  "testing"
  "time"
)

func TestDoStopsEarlyWhenDone(t *testing.T) {
  calls := 0
  err := Do(context.Background(), Config{MaxAttempts: 3}, func(attempt int) (bool, error) {
    calls++
    return attempt == 1, nil
  })
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  if calls != 2 {
    t.Fatalf("calls=%d, want 2", calls)
  }
}

func TestDoErrorOnlyWhenAllAttemptsFail(t *testing.T) {
  boom := errors.New("boom")

  cases := []struct {
    name    string
    results []error
    wantErr bool
  }{
    {name: "all_fail", results: []error{boom, boom, boom}, wantErr: true},
    {name: "partial_success", results: []error{boom, nil, boom}, wantErr: false},
    {name: "none_fail", results: []error{nil, nil, nil}, wantErr: false},
  }

  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      i := 0
      err := Do(context.Background(), Config{MaxAttempts: 3}, func(int) (bool, error) {
        res := tc.results[i]
        i++
        return false, res
      })
      if (err != nil) != tc.wantErr {
        t.Fatalf("err=%v, wantErr=%v", err, tc.wantErr)
      }
    })
  }
}

func TestDoHonorsContextCancellation(t *testing.T) {
  ctx, cancel := context.WithCancel(context.Background())
  calls := 0
  err := Do(ctx, Config{MaxAttempts: 5, Backoff: time.Hour}, func(int) (bool, error) {
    calls++
    cancel()
    return false, nil
  })
  if !errors.Is(err, context.Canceled) {
    t.Fatalf("err=%v, want context.Canceled", err)
  }
  if calls != 1 {
    t.Fatalf("calls=%d, want 1", calls)
  }
}

func TestDoDoublesBackoffUpToCap(t *testing.T) {
  start := time.Now()
  err := Do(context.Background(), Config{
    MaxAttempts: 3,
    Backoff:     time.Millisecond,
    MaxBackoff:  2 * time.Millisecond,
    Double:      true,
  }, func(int) (bool, error) {
    return false, nil
  })
  if err != nil {
    t.Fatalf("unexpected error: %v", err)
  }
  // two sleeps: 1ms then 2ms
  if elapsed := time.Since(start); elapsed < 3*time.Millisecond {
    t.Fatalf("elapsed=%v, want >= 3ms", elapsed)
  }
}
