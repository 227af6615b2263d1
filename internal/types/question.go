package types

type QuestionType string

const (
  QuestionMultiSelect  QuestionType = "multi-select"
  QuestionABComparison QuestionType = "ab-comparison"
)

// QuestionStrategy is the inference service's suggestion for the next
// question. Reasoning is diagnostic only and never shown to the user.
type QuestionStrategy struct {
  QuestionType QuestionType `json:"question_type"`
  Queries      []string     `json:"queries"`
  Message      string       `json:"message,omitempty"`
  Reasoning    string       `json:"reasoning,omitempty"`
}

// PlaceSelection is one candidate from a presented multi-select batch with
// the user's verdict.
type PlaceSelection struct {
  Place    PlaceCandidate `json:"place"`
  Selected bool           `json:"selected"`
}

// ABComparison is a pairwise answer. SliderValue is 1..10: 1 = strongly
// prefer A, 10 = strongly prefer B, 5 = neutral.
type ABComparison struct {
  PlaceA      PlaceCandidate `json:"place_a"`
  PlaceB      PlaceCandidate `json:"place_b"`
  SliderValue int            `json:"slider_value"`
}

// Strength maps the slider to a 0..1 preference strength; 0 at neutral.
func (c ABComparison) Strength() float64 {
  d := float64(c.SliderValue - 5)
  if d < 0 {
    d = -d
  }
  return d / 5
}

// Preferred names the favored side: "placeA", "placeB" or "neutral".
func (c ABComparison) Preferred() string {
  switch {
  case c.SliderValue < 5:
    return "placeA"
  case c.SliderValue > 5:
    return "placeB"
  }
  return "neutral"
}
