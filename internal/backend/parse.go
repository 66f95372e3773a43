// Package backend adapts hosted and local language models to the
// consensus.Backend interface.
package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/terms-extractor/internal/model"
)

// ErrNoJSON is returned when a response holds no JSON object.
var ErrNoJSON = eris.New("backend: no json object in response")

// ParseResult pulls the first JSON object out of a model response and maps
// its keys onto a Result. Non-string values are stringified; arrays are
// joined with ", ".
func ParseResult(text string) (model.Result, error) {
	obj, ok := firstObject(text)
	if !ok {
		return model.Result{}, ErrNoJSON
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return model.Result{}, eris.Wrap(err, "backend: decode response json")
	}

	values := make(map[model.Field]string, len(raw))
	for k, v := range raw {
		if f, ok := model.ParseField(k); ok {
			values[f] = stringify(v)
		}
	}
	if len(values) == 0 {
		return model.Result{}, eris.New("backend: response json has no known fields")
	}
	return model.NewResult(values), nil
}

// firstObject returns the first balanced {...} span, skipping braces inside
// JSON strings.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return model.Sentinel
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := strings.TrimSpace(stringify(e)); !model.IsSentinel(s) {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
