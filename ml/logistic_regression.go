package ml

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// inverse L2 strength; only guards against diverging weights on separable data
	regularizationC = 1.0
	maxIterations   = 100
	tolerance       = 1e-8
)

// LogisticRegression is a binary classifier fitted by Newton-Raphson on
// standardised features. Fitting is deterministic for identical input.
type LogisticRegression struct {
	schema    Schema
	scaler    *Scaler
	weights   []float64
	bias      float64
	rows      int
	trainedAt time.Time
}

func NewLogisticRegression(schema Schema) *LogisticRegression {
	return &LogisticRegression{schema: schema}
}

func (m *LogisticRegression) Schema() Schema {
	return m.schema
}

func (m *LogisticRegression) Rows() int {
	return m.rows
}

func (m *LogisticRegression) TrainedAt() time.Time {
	return m.trainedAt
}

// Coefficients returns the weights in standardised feature space and the bias.
func (m *LogisticRegression) Coefficients() ([]float64, float64) {
	return append([]float64(nil), m.weights...), m.bias
}

func (m *LogisticRegression) Trained() bool {
	return len(m.weights) > 0 && m.scaler != nil
}

func (m *LogisticRegression) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if arity := m.schema.Arity(); arity > 0 && len(features[0]) != arity {
		return fmt.Errorf("%w: rows have %d features, schema has %d", ErrSchemaMismatch, len(features[0]), arity)
	}
	positives := 0
	for _, label := range labels {
		if label != 0 && label != 1 {
			return fmt.Errorf("%w: %d", ErrInvalidLabel, label)
		}
		positives += label
	}
	if positives == 0 || positives == len(labels) {
		return ErrSingleClass
	}

	scaler, err := FitScaler(features)
	if err != nil {
		return err
	}
	scaled, err := scaler.TransformAll(features)
	if err != nil {
		return err
	}

	theta, err := fitNewton(scaled, labels)
	if err != nil {
		return err
	}

	width := len(features[0])
	m.scaler = scaler
	m.weights = theta[:width]
	m.bias = theta[width]
	m.rows = len(features)
	m.trainedAt = time.Now().UTC()
	return nil
}

// Predict returns the class and the probability of class 1. Class 1 is
// chosen when the decision function is strictly positive.
func (m *LogisticRegression) Predict(features []float64) (int, float64, error) {
	if !m.Trained() {
		return 0, 0, ErrNotTrained
	}
	if len(features) != len(m.weights) {
		return 0, 0, fmt.Errorf("%w: got %d feature values, model expects %d", ErrSchemaMismatch, len(features), len(m.weights))
	}
	scaled, err := m.scaler.Transform(features)
	if err != nil {
		return 0, 0, err
	}
	z := m.decision(scaled)
	label := 0
	if z > 0 {
		label = 1
	}
	return label, sigmoid(z), nil
}

func (m *LogisticRegression) decision(scaled []float64) float64 {
	z := m.bias
	for i, w := range m.weights {
		z += w * scaled[i]
	}
	return z
}

// fitNewton minimises 0.5*|w|^2 + C*sum(logloss) over the augmented
// parameter vector [w..., b]. The bias is not penalised.
func fitNewton(x [][]float64, y []int) ([]float64, error) {
	width := len(x[0])
	dim := width + 1
	theta := make([]float64, dim)

	grad := make([]float64, dim)
	hess := make([][]float64, dim)
	for i := range hess {
		hess[i] = make([]float64, dim)
	}
	row := make([]float64, dim)

	for iter := 0; iter < maxIterations; iter++ {
		for i := range grad {
			grad[i] = 0
			for j := range hess[i] {
				hess[i][j] = 0
			}
		}

		for n, features := range x {
			copy(row, features)
			row[width] = 1
			z := 0.0
			for i, v := range row {
				z += theta[i] * v
			}
			p := sigmoid(z)
			residual := regularizationC * (p - float64(y[n]))
			weight := regularizationC * p * (1 - p)
			for i := 0; i < dim; i++ {
				grad[i] += residual * row[i]
				for j := 0; j <= i; j++ {
					hess[i][j] += weight * row[i] * row[j]
				}
			}
		}
		for i := 0; i < dim; i++ {
			for j := 0; j < i; j++ {
				hess[j][i] = hess[i][j]
			}
		}
		for i := 0; i < width; i++ {
			grad[i] += theta[i]
			hess[i][i]++
		}
		hess[width][width] += 1e-12

		step, err := solveLinear(hess, grad)
		if err != nil {
			return nil, fmt.Errorf("newton step %d: %w", iter, err)
		}
		maxStep := 0.0
		for i := range theta {
			theta[i] -= step[i]
			if a := math.Abs(step[i]); a > maxStep {
				maxStep = a
			}
		}
		if maxStep < tolerance {
			break
		}
	}

	for _, v := range theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("fit diverged")
		}
	}
	return theta, nil
}

// solveLinear solves a*x = b by Gaussian elimination with partial pivoting.
// a and b are not modified.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range a {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-300 {
			return nil, errors.New("singular matrix")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
