package apierr

import (
  "errors"
  "fmt"
  "net/http"
)

// Sentinels for the failure modes callers branch on with errors.Is.
var (
  ErrSessionNotFound        = errors.New("onboarding session not found")
  ErrProfileNotInitialized  = errors.New("preference profile not initialized")
  ErrInferenceFailure       = errors.New("inference failure")
  ErrProviderTransport      = errors.New("place provider transport failure")
  ErrInsufficientCandidates = errors.New("insufficient candidates")
  ErrUnauthorized           = errors.New("unauthorized")
  ErrInvalidArgument        = errors.New("invalid argument")
  ErrNotFound               = errors.New("not found")
  ErrRateLimited            = errors.New("rate limit exceeded")
)

type Error struct {
  Status int
  Code   string
  Err    error
}

func (e *Error) Error() string {
  if e == nil {
    return ""
  }
  if e.Err != nil {
    return e.Err.Error()
  }
  if e.Code != "" {
    return e.Code
  }
  if e.Status != 0 {
    return fmt.Sprintf("api error (%d)", e.Status)
  }
  return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
  return &Error{Status: status, Code: code, Err: err}
}

// StatusFor maps the taxonomy sentinels to HTTP statuses. Unrecognized
// errors are 500.
func StatusFor(err error) (int, string) {
  var ae *Error
  if errors.As(err, &ae) && ae.Status != 0 {
    return ae.Status, ae.Code
  }
  switch {
  case errors.Is(err, ErrSessionNotFound):
    return http.StatusNotFound, "session_not_found"
  case errors.Is(err, ErrProfileNotInitialized):
    return http.StatusPreconditionFailed, "profile_not_initialized"
  case errors.Is(err, ErrInferenceFailure):
    return http.StatusBadGateway, "inference_failure"
  case errors.Is(err, ErrProviderTransport):
    return http.StatusBadGateway, "provider_transport_error"
  case errors.Is(err, ErrUnauthorized):
    return http.StatusUnauthorized, "unauthorized"
  case errors.Is(err, ErrInvalidArgument):
    return http.StatusBadRequest, "invalid_argument"
  case errors.Is(err, ErrNotFound):
    return http.StatusNotFound, "not_found"
  case errors.Is(err, ErrRateLimited):
    return http.StatusTooManyRequests, "rate_limited"
  }
  return http.StatusInternalServerError, "internal_error"
}
