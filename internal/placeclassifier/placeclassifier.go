// Package placeclassifier predicts a coarse place category for photos that
// carry no GPS metadata. It maps raw scene-model labels onto a small fixed
// category set and withholds predictions below a confidence floor.
package placeclassifier

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/tkoivula/photonest/internal/classifier"
	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/errors"
	"github.com/tkoivula/photonest/internal/logging"
)

// Place categories the predictor can emit. Unknown is internal: it never
// surfaces as a prediction.
const (
	CategoryBeach    = "Beach"
	CategoryMountain = "Mountain"
	CategoryForest   = "Forest"
	CategoryCity     = "City"
	CategoryLake     = "Lake"
	CategoryPark     = "Park"
	CategoryIndoor   = "Indoor"
	categoryUnknown  = "Unknown"
)

// DefaultMinConfidence is the prediction floor applied when the configured
// threshold is unset.
const DefaultMinConfidence = 0.15

// keywordGroup maps label substrings to a place category. Groups are checked
// in order and the first match wins.
type keywordGroup struct {
	category string
	keywords []string
}

var keywordGroups = []keywordGroup{
	{CategoryBeach, []string{"beach", "coast", "seashore", "ocean", "sand"}},
	{CategoryMountain, []string{"mountain", "peak", "summit", "cliff", "alpine", "ridge"}},
	{CategoryForest, []string{"forest", "wood", "jungle", "grove", "rainforest"}},
	{CategoryCity, []string{"city", "street", "skyline", "urban", "downtown", "building", "skyscraper"}},
	{CategoryLake, []string{"lake", "pond", "lagoon", "reservoir"}},
	{CategoryPark, []string{"park", "garden", "playground", "lawn"}},
	{CategoryIndoor, []string{"indoor", "room", "interior", "restaurant", "museum", "kitchen", "office"}},
}

// Recognizer yields raw scene predictions for an image. *classifier.Classifier
// satisfies it.
type Recognizer interface {
	ClassifyAll(ctx context.Context, data []byte) ([]classifier.Result, error)
}

// Prediction is a place category with its confidence.
type Prediction struct {
	Category   string
	Confidence float64
}

// PlaceClassifier filters scene-model output down to place categories.
type PlaceClassifier struct {
	recognizer    Recognizer
	minConfidence float64
	logger        *slog.Logger
}

var placeLogger *slog.Logger

func init() {
	var err error
	placeLogger, _, err = logging.NewFileLogger("logs/placeclassifier.log", "placeclassifier", slog.LevelInfo)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, nil)
		placeLogger = slog.New(fbHandler).With("service", "placeclassifier")
	}
}

// New creates a PlaceClassifier on top of a scene recognizer.
func New(settings *conf.Settings, recognizer Recognizer) *PlaceClassifier {
	minConfidence := settings.Place.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &PlaceClassifier{
		recognizer:    recognizer,
		minConfidence: minConfidence,
		logger:        placeLogger,
	}
}

// Predict classifies the image and returns the best place category, or nil
// when no category clears the confidence floor. A nil result with a nil error
// means "no confident prediction", not failure.
func (pc *PlaceClassifier) Predict(ctx context.Context, data []byte) (*Prediction, error) {
	results, err := pc.recognizer.ClassifyAll(ctx, data)
	if err != nil {
		return nil, errors.New(err).
			Component("placeclassifier").
			Category(errors.CategoryPlacePrediction).
			Build()
	}

	best := pickBest(results)
	if best == nil {
		return nil, nil
	}
	if best.Category == categoryUnknown || best.Confidence < pc.minConfidence {
		if pc.logger != nil {
			pc.logger.Debug("prediction below floor",
				"category", best.Category,
				"confidence", best.Confidence,
				"floor", pc.minConfidence)
		}
		return nil, nil
	}
	return best, nil
}

// pickBest returns the highest-confidence result that maps to a known place
// category.
func pickBest(results []classifier.Result) *Prediction {
	var best *Prediction
	for _, r := range results {
		category := categorize(r.Label)
		if category == categoryUnknown {
			continue
		}
		if best == nil || r.Confidence > best.Confidence {
			best = &Prediction{Category: category, Confidence: r.Confidence}
		}
	}
	return best
}

// categorize maps a raw model label to a place category by keyword.
func categorize(label string) string {
	lower := strings.ToLower(label)
	for _, group := range keywordGroups {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return group.category
			}
		}
	}
	return categoryUnknown
}
