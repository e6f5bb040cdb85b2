package classifier

import (
	"fmt"
	"math"
	"sort"
)

// TopN 每次预测保留的类别数
const TopN = 4

// Prediction 单个类别及其百分比置信度
type Prediction struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// TopK 取得分最高的 k 个类别，按置信度降序，百分比保留两位小数
func TopK(scores []float32, labels []string, k int) ([]Prediction, error) {
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("score count %d does not match label count %d", len(scores), len(labels))
	}
	if k > len(scores) {
		return nil, fmt.Errorf("need %d classes, model has %d", k, len(scores))
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	out := make([]Prediction, k)
	for i := 0; i < k; i++ {
		out[i] = Prediction{
			Class:       labels[idx[i]],
			Probability: toPercent(scores[idx[i]]),
		}
	}
	return out, nil
}

func toPercent(score float32) float64 {
	return math.Round(float64(score)*100*100) / 100
}
