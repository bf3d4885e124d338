package ml

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 1024

// CachedPredictor memoises predictions by feature tuple. Batch scans tend to
// repeat the same small ticket and trade counts many times.
type CachedPredictor struct {
	next   Scorer
	cache  *lru.Cache[string, Prediction]
	hits   int
	misses int
}

func NewCachedPredictor(next Scorer, size int) (*CachedPredictor, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Prediction](size)
	if err != nil {
		return nil, err
	}
	return &CachedPredictor{next: next, cache: cache}, nil
}

func (c *CachedPredictor) Predict(values []float64) (Prediction, error) {
	key := tupleKey(values)
	if prediction, ok := c.cache.Get(key); ok {
		c.hits++
		return prediction, nil
	}
	c.misses++
	prediction, err := c.next.Predict(values)
	if err != nil {
		return Prediction{}, err
	}
	c.cache.Add(key, prediction)
	return prediction, nil
}

func (c *CachedPredictor) Stats() (hits, misses int) {
	return c.hits, c.misses
}

func tupleKey(values []float64) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return sb.String()
}
