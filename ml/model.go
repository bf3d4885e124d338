package ml

type MLModel interface {
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
	Save(path string) error
	Load(path string) error
}

// Scorer scores a single feature vector.
type Scorer interface {
	Predict(values []float64) (Prediction, error)
}

type Prediction struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

func (p Prediction) IsScalper() bool {
	return p.Label == 1
}
