// Package classify wraps the external text classification service that turns
// an answer text into a grade label.
package classify

import "context"

// Prediction is one label/confidence pair returned by the service.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier is the interface the grading pipeline depends on.
type Classifier interface {
	// Classify returns the grade label for text under the given model. A
	// response without predictions yields constants.ErrorLabel and no error.
	Classify(ctx context.Context, modelURI, text string) (string, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, modelURI, text string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, modelURI, text string) (string, error) {
	return f(ctx, modelURI, text)
}
