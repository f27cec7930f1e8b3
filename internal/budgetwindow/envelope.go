package budgetwindow

import (
	"encoding/json"
	"errors"
	"strings"
)

// ExtractJSONObject returns the substring from the first '{' to the last '}'
// in the model's raw text. Models routinely wrap the requested JSON object in
// prose or code fences; the envelope contract is that exactly one JSON object
// is present and everything around it is discarded.
func ExtractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", errors.New("response contained no JSON object")
	}
	return text[start : end+1], nil
}

// DecodeJSONObject extracts the JSON envelope from text and unmarshals it
// into out.
func DecodeJSONObject(text string, out any) error {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), out)
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// truncatedJSON marshals v and caps the output at max runes. Used for the
// synthesis stage's company snapshot, which does not need the full record.
func truncatedJSON(v any, max int) string {
	s := mustJSON(v)
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
