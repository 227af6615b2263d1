package services

const (
  stopConfidenceThreshold = 0.85
  maxQuestionsPerCategory = 10
  plateauWindowSize       = 3
  plateauDeltaThreshold   = 0.1
)

// ShouldStop decides whether the interview has learned enough about the
// current category. Stops on strong confidence, on the hard question cap, or
// when the last few confidence deltas show learning has plateaued.
func ShouldStop(confidence float64, questionsAsked int, recentDeltas []float64) bool {
  if confidence >= stopConfidenceThreshold {
    return true
  }
  if questionsAsked >= maxQuestionsPerCategory {
    return true
  }
  if len(recentDeltas) >= plateauWindowSize {
    window := recentDeltas[len(recentDeltas)-plateauWindowSize:]
    sum := 0.0
    for _, d := range window {
      if d < 0 {
        sum -= d
      } else {
        sum += d
      }
    }
    if sum/plateauWindowSize < plateauDeltaThreshold {
      return true
    }
  }
  return false
}
