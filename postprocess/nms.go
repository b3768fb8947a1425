package postprocess

import (
	"math"
	"sort"
	"sync"
)

// candidate is a decoded box in tensor pixel space before suppression
type candidate struct {
	x1, y1, x2, y2 float32
	score          float32
	class          int
}

// calculateOverlap works out the Intersection over Union (IoU) of two boxes
func calculateOverlap(a, b candidate) float32 {

	w := math.Max(0, math.Min(float64(a.x2), float64(b.x2))-math.Max(float64(a.x1), float64(b.x1)))
	h := math.Max(0, math.Min(float64(a.y2), float64(b.y2))-math.Max(float64(a.y1), float64(b.y1)))
	intersection := float32(w * h)

	area0 := (a.x2 - a.x1) * (a.y2 - a.y1)
	area1 := (b.x2 - b.x1) * (b.y2 - b.y1)

	union := area0 + area1 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// nms sorts candidates by descending score and suppresses, per class, any
// box overlapping a higher scoring box by more than threshold.  At most
// limit boxes are returned when limit is positive.
func nms(cands []candidate, threshold float32, limit int) []candidate {

	// stable so equal scores keep decode order
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	suppressed := make([]bool, len(cands))
	var keep []candidate

	for i := range cands {

		if suppressed[i] {
			continue
		}

		keep = append(keep, cands[i])

		if limit > 0 && len(keep) >= limit {
			break
		}

		for j := i + 1; j < len(cands); j++ {
			if suppressed[j] || cands[j].class != cands[i].class {
				continue
			}

			if calculateOverlap(cands[i], cands[j]) > threshold {
				suppressed[j] = true
			}
		}
	}

	return keep
}

// IDGenerator hands out incrementing detection IDs
type IDGenerator struct {
	id int64
	sync.Mutex
}

// NewIDGenerator returns a generator whose first ID is one
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next ID
func (id *IDGenerator) GetNext() int64 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}
