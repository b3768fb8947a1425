package hooptrack

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the number of frames passed to the detector per call
	DefaultBatchSize = 20
	// DefaultConfidence is the minimum detection score kept by the detector
	DefaultConfidence = 0.5
)

// DetectionAdapter runs a Detector over a whole frame sequence in fixed size
// batches.  Batching only bounds the memory used by a single detector call,
// the batch boundaries have no effect on the result.
type DetectionAdapter struct {
	detector Detector
	// batchSize is the maximum number of frames per detector call
	batchSize int
	// confidence is the confidence floor passed to the detector
	confidence float32
	// workers is the number of batches allowed to run concurrently.  The
	// Detector must be safe for concurrent use when this is above one.
	workers int
	log     *zap.Logger
}

// AdapterOption configures a DetectionAdapter
type AdapterOption func(*DetectionAdapter)

// WithBatchSize sets the number of frames per detector call
func WithBatchSize(size int) AdapterOption {
	return func(a *DetectionAdapter) {
		if size > 0 {
			a.batchSize = size
		}
	}
}

// WithConfidence sets the detector confidence floor
func WithConfidence(conf float32) AdapterOption {
	return func(a *DetectionAdapter) {
		a.confidence = conf
	}
}

// WithWorkers sets how many batches may run concurrently
func WithWorkers(n int) AdapterOption {
	return func(a *DetectionAdapter) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the logger used by the adapter
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(a *DetectionAdapter) {
		a.log = OrNop(logger)
	}
}

// NewDetectionAdapter returns a DetectionAdapter for the given detector
func NewDetectionAdapter(detector Detector, opts ...AdapterOption) *DetectionAdapter {

	a := &DetectionAdapter{
		detector:   detector,
		batchSize:  DefaultBatchSize,
		confidence: DefaultConfidence,
		workers:    1,
		log:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.log = a.log.With(zap.String("component", "detection"))

	return a
}

// BatchSize returns the number of frames passed per detector call
func (a *DetectionAdapter) BatchSize() int {
	return a.batchSize
}

// Detect runs the detector over all frames and returns one DetectionSet per
// frame in frame order
func (a *DetectionAdapter) Detect(frames []Frame) ([]DetectionSet, error) {

	results := make([]DetectionSet, len(frames))
	batches := (len(frames) + a.batchSize - 1) / a.batchSize

	a.log.Debug("running detector",
		zap.Int("frames", len(frames)),
		zap.Int("batches", batches),
		zap.Int("workers", a.workers),
	)

	if a.workers == 1 {
		for b := 0; b < batches; b++ {
			if err := a.runBatch(frames, results, b); err != nil {
				return nil, err
			}
		}
		return results, nil
	}

	// the first failing batch cancels ctx so no further batches start
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(a.workers)

	for b := 0; b < batches && ctx.Err() == nil; b++ {
		b := b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return a.runBatch(frames, results, b)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// runBatch runs the detector on batch number b and stores its output at
// the batch's frame positions in results
func (a *DetectionAdapter) runBatch(frames []Frame, results []DetectionSet, b int) error {

	start := b * a.batchSize
	end := min(start+a.batchSize, len(frames))

	sets, err := a.detector.Predict(frames[start:end], a.confidence)

	if err != nil {
		return NewCapabilityError(CapabilityDetector, start,
			fmt.Errorf("batch %d (frames %d-%d): %w", b, start, end-1, err))
	}

	if len(sets) != end-start {
		return NewCapabilityError(CapabilityDetector, start,
			fmt.Errorf("batch %d returned %d detection sets for %d frames", b, len(sets), end-start))
	}

	copy(results[start:end], sets)

	return nil
}

// SharedDetections runs its source once per frame sequence and hands the
// same result to every caller.  It lets the player and ball trackers share
// one detector pass when a single model detects both.  The returned sets
// must be treated as read only.
type SharedDetections struct {
	source DetectionSource

	mu     sync.Mutex
	frames []Frame
	sets   []DetectionSet
	log    *zap.Logger
}

// NewSharedDetections wraps source
func NewSharedDetections(source DetectionSource, logger *zap.Logger) *SharedDetections {
	return &SharedDetections{
		source: source,
		log:    OrNop(logger).With(zap.String("component", "detection")),
	}
}

// Detect returns the detections of the previous call when frames is the
// same slice, otherwise it runs the source
func (s *SharedDetections) Detect(frames []Frame) ([]DetectionSet, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sets != nil && sameSlice(s.frames, frames) {
		s.log.Debug("reusing detections", zap.Int("frames", len(frames)))
		return s.sets, nil
	}

	sets, err := s.source.Detect(frames)

	if err != nil {
		return nil, err
	}

	s.frames = frames
	s.sets = sets

	return sets, nil
}

// Release drops the held detections
func (s *SharedDetections) Release() {
	s.mu.Lock()
	s.frames = nil
	s.sets = nil
	s.mu.Unlock()
}

// sameSlice reports whether a and b share backing array and length.  Frames
// are compared by position rather than value as image types need not be
// comparable.
func sameSlice(a, b []Frame) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
