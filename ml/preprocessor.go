package ml

import (
	"errors"
	"fmt"
	"math"
)

// Scaler standardises feature vectors to zero mean and unit variance using
// statistics computed over the training set. It is stored in the artifact so
// prediction applies exactly the transform used during training.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func FitScaler(features [][]float64) (*Scaler, error) {
	if len(features) == 0 {
		return nil, errors.New("features is empty")
	}
	width := len(features[0])
	if width == 0 {
		return nil, errors.New("feature vectors are empty")
	}

	mean := make([]float64, width)
	for i, vector := range features {
		if len(vector) != width {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(vector), width)
		}
		for j, value := range vector {
			mean[j] += value
		}
	}
	n := float64(len(features))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, width)
	for _, vector := range features {
		for j, value := range vector {
			diff := value - mean[j]
			scale[j] += diff * diff
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		// constant column
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	return &Scaler{Mean: mean, Scale: scale}, nil
}

func (s *Scaler) Width() int {
	return len(s.Mean)
}

func (s *Scaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.Mean) || len(values) != len(s.Scale) {
		return nil, errors.New("values/mean/scale length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = (values[i] - s.Mean[i]) / s.Scale[i]
	}
	return result, nil
}

func (s *Scaler) TransformAll(features [][]float64) ([][]float64, error) {
	vectors := make([][]float64, len(features))
	for i, vector := range features {
		normalized, err := s.Transform(vector)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		vectors[i] = normalized
	}
	return vectors, nil
}

func (s *Scaler) validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return errors.New("scaler mean/scale length mismatch")
	}
	for i, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scaler scale[%d] is invalid", i)
		}
	}
	return nil
}
