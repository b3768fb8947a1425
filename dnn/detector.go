// Package dnn runs an exported YOLOv8 ONNX model with the OpenCV DNN module
// to detect players and the ball in video frames.
package dnn

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/postprocess"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// padColor is the letterbox padding used when the model was trained
var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// ErrPoolClosed is returned by Predict after Close
var ErrPoolClosed = errors.New("detector is closed")

// Detector implements hooptrack.Detector.  It is safe for concurrent use
// by as many goroutines as it has pool sessions, further callers wait.
type Detector struct {
	pool      *Pool
	decoder   *postprocess.YOLOv8
	names     hooptrack.ClassTable
	inputSize int
	log       *zap.Logger
}

// NewDetector loads the model and labels named in cfg, one model instance
// per worker
func NewDetector(cfg hooptrack.DetectorConfig, logger *zap.Logger) (*Detector, error) {

	names, err := hooptrack.LoadLabels(cfg.Labels)

	if err != nil {
		return nil, err
	}

	pool, err := NewPool(cfg.Workers, cfg.Model, cfg.InputSize)

	if err != nil {
		return nil, err
	}

	params := postprocess.YOLOv8DefaultParams()
	params.ObjectClassNum = len(names)
	params.BoxThreshold = cfg.Confidence
	params.NMSThreshold = cfg.NMSThreshold

	log := hooptrack.OrNop(logger).With(zap.String("component", "dnn"))

	log.Info("model loaded",
		zap.String("model", cfg.Model),
		zap.Int("classes", len(names)),
		zap.Int("sessions", pool.Size()),
		zap.Int("input_size", cfg.InputSize),
	)

	return &Detector{
		pool:      pool,
		decoder:   postprocess.NewYOLOv8(params),
		names:     names,
		inputSize: cfg.InputSize,
		log:       log,
	}, nil
}

// Names returns the class table of the model
func (d *Detector) Names() hooptrack.ClassTable {
	return d.names
}

// Close frees all model instances
func (d *Detector) Close() {
	d.pool.Close()
}

// Predict runs the model over frames as a single batch and returns one
// DetectionSet per frame
func (d *Detector) Predict(frames []hooptrack.Frame, confidence float32) ([]hooptrack.DetectionSet, error) {

	if len(frames) == 0 {
		return nil, nil
	}

	s := d.pool.Get()

	if s == nil {
		return nil, ErrPoolClosed
	}

	defer d.pool.Return(s)

	inputs := make([]gocv.Mat, 0, len(frames))
	boxes := make([]postprocess.Letterbox, 0, len(frames))

	defer func() {
		for _, m := range inputs {
			m.Close()
		}
	}()

	for i, frame := range frames {

		src, err := gocv.ImageToMatRGB(frame)

		if err != nil {
			return nil, fmt.Errorf("error converting frame %d: %w", i, err)
		}

		dst := gocv.NewMat()
		r := s.resizer(src.Cols(), src.Rows())
		r.LetterBoxResize(src, &dst, padColor)
		src.Close()

		inputs = append(inputs, dst)
		boxes = append(boxes, r.Letterbox)
	}

	blob := gocv.NewMat()
	defer blob.Close()

	// ImageToMatRGB gives BGR channel order, swap back to RGB for the model
	gocv.BlobFromImages(inputs, &blob, 1.0/255.0, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false, gocv.MatTypeCV32F)

	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	defer out.Close()

	dims := out.Size()

	if len(dims) != 3 || dims[0] != len(frames) {
		return nil, fmt.Errorf("unexpected output shape %v for batch of %d", dims, len(frames))
	}

	data, err := out.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading output tensor: %w", err)
	}

	perFrame := dims[1] * dims[2]
	sets := make([]hooptrack.DetectionSet, len(frames))

	for i := range frames {
		dets, err := d.decoder.DetectObjects(data[i*perFrame:(i+1)*perFrame], dims[2], boxes[i], confidence)

		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}

		sets[i] = hooptrack.DetectionSet{Detections: dets, Names: d.names}
	}

	return sets, nil
}
