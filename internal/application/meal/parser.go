package meal

import (
	"errors"
	"strings"

	"github.com/nutrisnap/v2/pkg/jsonrepair"
)

// Failure reasons persisted on FAILED meals. Stable strings: clients
// switch on them.
const (
	ReasonContentBlocked = "content_blocked"
	ReasonNoFoodDetected = "no_food_detected"
	ReasonUnparseable    = "unparseable_response"
	ReasonVisionTimeout  = "vision_timeout"
	ReasonVisionError    = "vision_unavailable"
)

// Parser errors
var (
	ErrContentBlocked = errors.New("model refused the image")
	ErrUnparseable    = errors.New("model response could not be parsed")
)

// AnalyzedItem is one food item as described by the vision model.
type AnalyzedItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein"`
	Carbs      float64 `json:"carbs"`
	Fat        float64 `json:"fat"`
	Fiber      float64 `json:"fiber"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult is the parsed vision response.
type AnalysisResult struct {
	DishName string         `json:"dish_name"`
	Items    []AnalyzedItem `json:"items"`
}

// ParseAnalysisResponse recovers a structured result from model output.
// Safety refusals surface as ErrContentBlocked so the pipeline records
// a fixed failure reason instead of a parse error.
func ParseAnalysisResponse(raw string) (*AnalysisResult, error) {
	if isRefusal(raw) {
		return nil, ErrContentBlocked
	}
	var result AnalysisResult
	if err := jsonrepair.Decode(raw, &result); err != nil {
		return nil, ErrUnparseable
	}
	return &result, nil
}

// isRefusal detects safety blocks. A refusal is prose, never JSON, so
// the phrase check only applies when no object is present.
func isRefusal(raw string) bool {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "content_blocked") {
		return true
	}
	if strings.Contains(raw, "{") {
		return false
	}
	for _, phrase := range []string{"i cannot", "i can't", "unable to assist", "not able to help"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
