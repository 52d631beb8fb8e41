package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Complexity is a 1–8 effort score. The three-level label and the emoji
// badge are both derived from it.
type Complexity int

const (
	MinComplexity     Complexity = 1
	MaxComplexity     Complexity = 8
	DefaultComplexity Complexity = 3
)

const (
	LevelSimple   = "simple"
	LevelModerate = "moderate"
	LevelComplex  = "complex"
)

func (c Complexity) IsValid() bool {
	return c >= MinComplexity && c <= MaxComplexity
}

// Level maps the score onto simple (1–2), moderate (3–5) and complex (6–8).
func (c Complexity) Level() string {
	switch {
	case c <= 2:
		return LevelSimple
	case c <= 5:
		return LevelModerate
	default:
		return LevelComplex
	}
}

func (c Complexity) Emoji() string {
	switch c.Level() {
	case LevelSimple:
		return "🟢"
	case LevelModerate:
		return "🟡"
	default:
		return "🔴"
	}
}

// ParseComplexity accepts a level name or a numeric score.
func ParseComplexity(value string) (Complexity, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case LevelSimple:
		return 1, nil
	case LevelModerate:
		return 3, nil
	case LevelComplex:
		return 6, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("unknown complexity %q", value)
	}
	c := Complexity(n)
	if !c.IsValid() {
		return 0, fmt.Errorf("complexity %d out of range %d-%d", n, MinComplexity, MaxComplexity)
	}
	return c, nil
}

type complexityView struct {
	Score int    `json:"score"`
	Level string `json:"level"`
	Emoji string `json:"emoji"`
}

func (c Complexity) MarshalJSON() ([]byte, error) {
	return json.Marshal(complexityView{Score: int(c), Level: c.Level(), Emoji: c.Emoji()})
}

// UnmarshalJSON accepts the object form, a bare score or a level string.
func (c *Complexity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	switch data[0] {
	case '{':
		var view complexityView
		if err := json.Unmarshal(data, &view); err != nil {
			return err
		}
		if view.Score == 0 && view.Level != "" {
			parsed, err := ParseComplexity(view.Level)
			if err != nil {
				return err
			}
			*c = parsed
			return nil
		}
		return c.set(view.Score)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseComplexity(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		return c.set(n)
	}
}

func (c *Complexity) set(n int) error {
	v := Complexity(n)
	if !v.IsValid() {
		return fmt.Errorf("complexity %d out of range %d-%d", n, MinComplexity, MaxComplexity)
	}
	*c = v
	return nil
}
