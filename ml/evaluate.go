package ml

// Metrics summarises how a model scores a labelled set. Class 1 is the
// positive class.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Samples   int     `json:"samples"`
}

func Evaluate(model MLModel, features [][]float64, labels []int) Metrics {
	if len(features) == 0 || len(features) != len(labels) {
		return Metrics{}
	}

	var correct int
	var truePositive int
	var predictedPositive int
	var actualPositive int
	var scored int

	for i, feature := range features {
		label, _, err := model.Predict(feature)
		if err != nil {
			continue
		}
		scored++
		if label == labels[i] {
			correct++
		}
		if label == 1 {
			predictedPositive++
		}
		if labels[i] == 1 {
			actualPositive++
			if label == 1 {
				truePositive++
			}
		}
	}

	metrics := Metrics{Samples: scored}
	if scored > 0 {
		metrics.Accuracy = float64(correct) / float64(scored)
	}
	if predictedPositive > 0 {
		metrics.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		metrics.Recall = float64(truePositive) / float64(actualPositive)
	}
	return metrics
}
