package ml

import "fmt"

// Predictor scores feature tuples against a loaded artifact after checking
// that the caller's feature list matches the one the model was trained on.
type Predictor struct {
	model *LogisticRegression
}

func NewPredictor(path string, features []string) (*Predictor, error) {
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	return newPredictor(model, features)
}

func newPredictor(model *LogisticRegression, features []string) (*Predictor, error) {
	requested := Schema{Features: features}
	if !model.Schema().SameFeatures(requested) {
		return nil, fmt.Errorf("%w: model was trained on %v, requested %v", ErrSchemaMismatch, model.Schema().Features, features)
	}
	return &Predictor{model: model}, nil
}

func (p *Predictor) Schema() Schema {
	return p.model.Schema()
}

func (p *Predictor) Predict(values []float64) (Prediction, error) {
	label, probability, err := p.model.Predict(values)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: label, Probability: probability}, nil
}
