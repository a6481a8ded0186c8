package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strings"
)

// Label names an emotion, e.g. "happy".
type Label string

// Known labels produced by FER-style models.
const (
	Angry    Label = "angry"
	Disgust  Label = "disgust"
	Fear     Label = "fear"
	Happy    Label = "happy"
	Sad      Label = "sad"
	Surprise Label = "surprise"
	Neutral  Label = "neutral"
)

// Vocabulary lists the known labels in FER enumeration order.
var Vocabulary = []Label{Angry, Disgust, Fear, Happy, Sad, Surprise, Neutral}

var synonyms = map[string]Label{
	"surprised": Surprise,
	"fearful":   Fear,
	"disgusted": Disgust,
	"happiness": Happy,
	"sadness":   Sad,
	"anger":     Angry,
	"calm":      Neutral,
}

// NormalizeLabel lower-cases and trims a raw label and folds common synonyms
// onto the known vocabulary. Unknown labels are kept.
func NormalizeLabel(raw string) Label {
	value := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := synonyms[value]; ok {
		return mapped
	}
	return Label(value)
}

// Known reports whether l is part of the FER vocabulary.
func (l Label) Known() bool {
	for _, v := range Vocabulary {
		if v == l {
			return true
		}
	}
	return false
}

// Score pairs a label with a confidence in [0,1].
type Score struct {
	Label Label   `json:"label"`
	Value float64 `json:"score"`
}

// Scores is an ordered list of label scores.
type Scores []Score

// Top returns the first maximal entry. ok is false when s is empty.
func (s Scores) Top() (Label, float64, bool) {
	if len(s) == 0 {
		return "", 0, false
	}
	best := 0
	for i := 1; i < len(s); i++ {
		if s[i].Value > s[best].Value {
			best = i
		}
	}
	return s[best].Label, s[best].Value, true
}

// Get returns the score for label.
func (s Scores) Get(label Label) (float64, bool) {
	for _, sc := range s {
		if sc.Label == label {
			return sc.Value, true
		}
	}
	return 0, false
}

// UnmarshalJSON accepts either an object of label to score, preserving key
// order, or an array of {"label","score"} entries.
func (s *Scores) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}
	if trimmed[0] == '[' {
		var entries []Score
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		out := make(Scores, 0, len(entries))
		for _, e := range entries {
			out = append(out, Score{Label: NormalizeLabel(string(e.Label)), Value: e.Value})
		}
		*s = out
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("emotion scores: expected object, got %v", tok)
	}
	out := Scores{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("emotion scores: unexpected key %v", keyTok)
		}
		var value float64
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("emotion scores: label %q: %w", key, err)
		}
		out = append(out, Score{Label: NormalizeLabel(key), Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalJSON encodes scores as an object in their stored order.
func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(sc.Label))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(sc.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Box is a face bounding box in pixels.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UnmarshalJSON accepts [x,y,w,h] as well as the object form.
func (b *Box) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var coords []float64
		if err := json.Unmarshal(trimmed, &coords); err != nil {
			return err
		}
		if len(coords) != 4 {
			return fmt.Errorf("face box: want 4 coordinates, got %d", len(coords))
		}
		*b = Box{X: int(coords[0]), Y: int(coords[1]), Width: int(coords[2]), Height: int(coords[3])}
		return nil
	}
	type plain Box
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*b = Box(p)
	return nil
}

// Face is one detected face and its emotion scores.
type Face struct {
	Box    Box    `json:"box"`
	Scores Scores `json:"emotions"`
}

// TopOfFirstFace returns the top label of the first face. Additional faces are
// ignored; a frame contributes at most one label.
//
// A first face with an empty score map reports false, the same as no face.
// Such a frame returned a face record but adds nothing to the tally, so the
// tally total can fall short of the count of frames with face records.
func TopOfFirstFace(faces []Face) (Label, bool) {
	if len(faces) == 0 {
		return "", false
	}
	label, _, ok := faces[0].Scores.Top()
	return label, ok
}

// Classifier detects faces in a frame and scores each face's emotions.
// Implementations are constructed once by the caller, reused across runs, and
// released with Close.
type Classifier interface {
	Classify(ctx context.Context, frame image.Image) ([]Face, error)
	Close() error
}
