package ollama

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"moodreel/internal/services/retry"
)

// DecodeModelJSON unmarshals a model reply into target. Vision models often
// wrap the object in a ```json fence or a sentence, so the raw reply, the
// fence body and the outermost {...} span are tried in turn.
func DecodeModelJSON(content string, target any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}

	var firstErr error
	for _, candidate := range jsonCandidates(content) {
		err := json.Unmarshal([]byte(candidate), target)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return fmt.Errorf("%w (payload snippet: %s)", firstErr, retry.Snippet(content))
}

func jsonCandidates(content string) []string {
	candidates := []string{content}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && s != candidates[len(candidates)-1] {
			candidates = append(candidates, s)
		}
	}
	body := unfence(content)
	add(body)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		add(body[start : end+1])
	}
	return candidates
}

// unfence returns the body of a leading ``` block, dropping a json language
// tag. Other content is returned unchanged.
func unfence(content string) string {
	rest, ok := strings.CutPrefix(content, "```")
	if !ok {
		return content
	}
	rest = strings.TrimLeft(rest, " \t\r\n")
	if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
		rest = rest[4:]
	}
	if idx := strings.LastIndex(rest, "```"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}
