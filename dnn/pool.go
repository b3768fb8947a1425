package dnn

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/courtvision/hooptrack/preprocess"
	"gocv.io/x/gocv"
)

// Session is a loaded network together with the letterbox resizers it has
// used.  A Session must only be used by one goroutine at a time.
type Session struct {
	net      gocv.Net
	resizers map[image.Point]*preprocess.Resizer
	// inputSize is the square input tensor size of the network
	inputSize int
}

// newSession loads the ONNX model file
func newSession(modelFile string, inputSize int) (*Session, error) {

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("error loading model %s", modelFile)
	}

	return &Session{
		net:       net,
		resizers:  make(map[image.Point]*preprocess.Resizer),
		inputSize: inputSize,
	}, nil
}

// resizer returns the letterbox resizer for source frames of the given size
func (s *Session) resizer(width, height int) *preprocess.Resizer {

	key := image.Pt(width, height)

	if r, ok := s.resizers[key]; ok {
		return r
	}

	r := preprocess.NewResizer(width, height, s.inputSize, s.inputSize)
	s.resizers[key] = r

	return r
}

// Close frees the network and resizers
func (s *Session) Close() error {

	var errs []error

	for _, r := range s.resizers {
		errs = append(errs, r.Close())
	}

	errs = append(errs, s.net.Close())

	return errors.Join(errs...)
}

// Pool holds one Session per concurrent caller so a single Detector can
// serve several detection workers
type Pool struct {
	sessions chan *Session
	size     int
	mu       sync.Mutex
	closed   bool
}

// NewPool loads size instances of the model
func NewPool(size int, modelFile string, inputSize int) (*Pool, error) {

	if size < 1 {
		size = 1
	}

	p := &Pool{
		sessions: make(chan *Session, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		s, err := newSession(modelFile, inputSize)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		p.Return(s)
	}

	return p, nil
}

// Size returns the number of sessions in the pool
func (p *Pool) Size() int {
	return p.size
}

// Get takes a session from the pool, blocking until one is free
func (p *Pool) Get() *Session {
	return <-p.sessions
}

// Return a session to the pool, a session returned after Close is closed
func (p *Pool) Return(s *Session) {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = s.Close()
		return
	}

	select {
	case p.sessions <- s:
	default:
		// pool is full
		_ = s.Close()
	}
}

// Close the pool and all sessions in it
func (p *Pool) Close() {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.sessions)

	for s := range p.sessions {
		_ = s.Close()
	}
}
