// engine.go TFLite model specific code
package classifier

import (
	"fmt"
	"image"
	"math"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/tkoivula/photonest/internal/conf"
	"github.com/tkoivula/photonest/internal/errors"
)

// tfliteEngine runs inference through a TensorFlow Lite interpreter.
type tfliteEngine struct {
	model       *tflite.Model
	interpreter *tflite.Interpreter
	labels      []string
	sensitivity float64
	inputWidth  int
	inputHeight int
	mu          sync.Mutex
}

// newTFLiteEngine loads the model and labels configured in settings.
func newTFLiteEngine(settings *conf.Settings) (*tfliteEngine, error) {
	modelPath := settings.Classifier.ModelPath
	if modelPath == "" {
		return nil, errors.Newf("classifier: no model path configured").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}

	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, errors.ModelError(fmt.Errorf("classifier: cannot load model from %s", modelPath), modelPath)
	}

	options := tflite.NewInterpreterOptions()
	if threads := settings.Classifier.Threads; threads > 0 {
		options.SetNumThread(threads)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, errors.ModelError(fmt.Errorf("classifier: cannot create interpreter"), modelPath)
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, errors.ModelError(fmt.Errorf("classifier: tensor allocation failed"), modelPath)
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() < 4 {
		interpreter.Delete()
		model.Delete()
		return nil, errors.ModelError(fmt.Errorf("classifier: unexpected input tensor shape"), modelPath)
	}

	labels, err := loadLabels(settings.Classifier.LabelPath)
	if err != nil {
		interpreter.Delete()
		model.Delete()
		return nil, err
	}

	engine := &tfliteEngine{
		model:       model,
		interpreter: interpreter,
		labels:      labels,
		sensitivity: settings.Classifier.Sensitivity,
		// NHWC layout: [1, height, width, channels]
		inputHeight: input.Dim(1),
		inputWidth:  input.Dim(2),
	}
	return engine, nil
}

// Predict performs inference on a decoded image and pairs the output with
// the loaded labels.
func (e *tfliteEngine) Predict(img image.Image) ([]Result, error) {
	// The interpreter is not safe for concurrent invocation; the queue above
	// already serializes, the lock guards direct engine use.
	e.mu.Lock()
	defer e.mu.Unlock()

	inputTensor := e.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}

	sample := imageToTensor(img, e.inputWidth, e.inputHeight)
	copy(inputTensor.Float32s(), sample)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	outputTensor := e.interpreter.GetOutputTensor(0)
	predictions := extractPredictions(outputTensor)

	confidence := applySigmoidToPredictions(predictions, e.sensitivity)

	return pairLabelsAndConfidence(e.labels, confidence)
}

// Close releases the interpreter and model.
func (e *tfliteEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}

// extractPredictions extracts prediction results from a TensorFlow Lite tensor.
func extractPredictions(tensor *tflite.Tensor) []float32 {
	predSize := tensor.Dim(tensor.NumDims() - 1)
	predictions := make([]float32, predSize)
	copy(predictions, tensor.Float32s())
	return predictions
}

// customSigmoid applies a sigmoid function with sensitivity adjustment to a value.
func customSigmoid(x, sensitivity float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sensitivity*x))
}

// applySigmoidToPredictions applies the sigmoid function to a slice of predictions.
func applySigmoidToPredictions(predictions []float32, sensitivity float64) []float64 {
	confidence := make([]float64, len(predictions))
	for i, pred := range predictions {
		confidence[i] = customSigmoid(float64(pred), sensitivity)
	}
	return confidence
}

// pairLabelsAndConfidence pairs labels with their corresponding confidence values.
func pairLabelsAndConfidence(labels []string, confidence []float64) ([]Result, error) {
	if len(labels) != len(confidence) {
		return nil, fmt.Errorf("mismatched labels and predictions lengths: %d vs %d", len(labels), len(confidence))
	}

	var results []Result
	for i, label := range labels {
		results = append(results, Result{Label: label, Confidence: confidence[i]})
	}
	return results, nil
}
