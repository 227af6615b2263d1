package services

import (
  _ "embed"
  "fmt"
  "math/rand"
  "strings"
  "sync"

  "gopkg.in/yaml.v3"

  "github.com/milaplaces/mila-backend/internal/types"
)

type MessageType string

const (
  MessageWelcome           MessageType = "welcome"
  MessageQuestionIntro     MessageType = "question_intro"
  MessageContinueExploring MessageType = "continue_exploring"
  MessageStyleContrast     MessageType = "style_contrast"
  MessageComparisonIntro   MessageType = "comparison_intro"
  MessageNearingCompletion MessageType = "nearing_completion"
  MessageCompletion        MessageType = "completion"
  MessageTransition        MessageType = "transition"
)

//go:embed messages.yaml
var messagePoolYAML []byte

// MessageSelector picks human-facing interview copy. A caller-supplied
// message always wins; otherwise a template is drawn uniformly from the pool
// for the message type and its {category}/{city} placeholders are filled in.
// Never reflects learned preferences back at the user.
type MessageSelector interface {
  Select(messageType MessageType, category types.PlaceCategory, city string, override string) string
}

type messageSelector struct {
  mu   sync.Mutex
  rng  *rand.Rand
  pool map[MessageType][]string
}

func NewMessageSelector(rng *rand.Rand) (MessageSelector, error) {
  pool := make(map[MessageType][]string)
  if err := yaml.Unmarshal(messagePoolYAML, &pool); err != nil {
    return nil, fmt.Errorf("parsing message pool: %w", err)
  }
  for _, messageType := range []MessageType{
    MessageWelcome, MessageQuestionIntro, MessageContinueExploring,
    MessageStyleContrast, MessageComparisonIntro, MessageNearingCompletion,
    MessageCompletion, MessageTransition,
  } {
    if len(pool[messageType]) == 0 {
      return nil, fmt.Errorf("message pool has no templates for %q", messageType)
    }
  }
  return &messageSelector{rng: rng, pool: pool}, nil
}

func (ms *messageSelector) Select(messageType MessageType, category types.PlaceCategory, city string, override string) string {
  if override != "" {
    return override
  }
  templates := ms.pool[messageType]
  if len(templates) == 0 {
    templates = ms.pool[MessageContinueExploring]
  }

  ms.mu.Lock()
  template := templates[ms.rng.Intn(len(templates))]
  ms.mu.Unlock()

  text := strings.ReplaceAll(template, "{category}", types.GetCategoryName(category))
  text = strings.ReplaceAll(text, "{city}", city)
  return strings.TrimSpace(text)
}
