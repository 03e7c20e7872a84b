package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"entomo/internal/cascade"
	"entomo/internal/services/vlm"
)

// Prediction is one primary classifier output.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Predictor produces ranked predictions for an image.
type Predictor interface {
	Predict(ctx context.Context, img vlm.Image) ([]Prediction, error)
}

// Scores converts predictions to a confidence map, keeping classifier order
// and the first occurrence of a repeated label.
func Scores(preds []Prediction) cascade.ConfidenceMap {
	scores := make([]cascade.Score, 0, len(preds))
	for _, p := range preds {
		scores = append(scores, cascade.Score{ID: p.Label, Confidence: p.Confidence})
	}
	return cascade.NewConfidenceMap(scores...)
}

// ParsePredictions decodes either supported JSON shape. Entries without a
// label are skipped. The object form has no inherent order and is ranked by
// descending confidence.
func ParsePredictions(data []byte) ([]Prediction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("parse predictions: empty payload")
	}
	switch trimmed[0] {
	case '[':
		var raw []struct {
			Label          string   `json:"label"`
			Classification string   `json:"classification"`
			Confidence     *float64 `json:"confidence"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("parse predictions: %w", err)
		}
		preds := make([]Prediction, 0, len(raw))
		for _, r := range raw {
			label := strings.TrimSpace(r.Label)
			if label == "" {
				label = strings.TrimSpace(r.Classification)
			}
			if label == "" || r.Confidence == nil {
				continue
			}
			preds = append(preds, Prediction{Label: label, Confidence: *r.Confidence})
		}
		return preds, nil
	case '{':
		var raw map[string]float64
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("parse predictions: %w", err)
		}
		ordered := cascade.FromMap(raw)
		preds := make([]Prediction, 0, len(ordered))
		for _, s := range ordered {
			preds = append(preds, Prediction{Label: s.ID, Confidence: s.Confidence})
		}
		return preds, nil
	default:
		return nil, errors.New("parse predictions: expected a JSON array or object")
	}
}

// FileSource returns predictions stored in a JSON file. The image is ignored.
type FileSource struct {
	Path string
}

// Predict reads and parses the file.
func (f FileSource) Predict(ctx context.Context, _ vlm.Image) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read predictions: %w", err)
	}
	preds, err := ParsePredictions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return preds, nil
}
