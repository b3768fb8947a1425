// Package stub persists expensive per-frame results (track sequences, team
// assignments) to disk so later runs over the same video can skip
// recomputing them.
package stub

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/flock"
)

// formatVersion is bumped whenever the record layout changes
const formatVersion = 1

// CorruptError is returned when a cache record exists but can not be
// decoded.  It is never treated as a missing record.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache record %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// record is the on disk envelope wrapping a payload
type record struct {
	Kind    string          `cbor:"1,keyasint"`
	Version int             `cbor:"2,keyasint"`
	Frames  int             `cbor:"3,keyasint"`
	Payload cbor.RawMessage `cbor:"4,keyasint"`
}

// Lengther is implemented by payloads that cover a number of frames
type Lengther interface {
	Len() int
}

// Store saves and loads a single value of type T at a file path
type Store[T any] struct {
	// path of the record, empty disables the store
	path string
	// kind names the payload shape so records of another shape are rejected
	kind string
	enc  cbor.EncMode
	dec  cbor.DecMode
}

// New returns a Store for records of the given kind at path
func New[T any](path, kind string) *Store[T] {

	enc, err := cbor.CanonicalEncOptions().EncMode()

	if err != nil {
		// canonical options are static and always valid
		panic(fmt.Sprintf("cbor encode mode: %v", err))
	}

	dec, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 24,
	}.DecMode()

	if err != nil {
		panic(fmt.Sprintf("cbor decode mode: %v", err))
	}

	return &Store[T]{
		path: path,
		kind: kind,
		enc:  enc,
		dec:  dec,
	}
}

// Path returns the record path
func (s *Store[T]) Path() string {
	return s.path
}

// Kind returns the payload kind stored
func (s *Store[T]) Kind() string {
	return s.kind
}

// Load reads the record.  ok is false when enabled is false, the path is
// unset or no record exists yet.  The value is returned exactly as saved,
// callers must check it still matches their frame count.
//
// A shared lock is held while reading.  Records in a location where the
// lock file can not be created, eg: stubs shipped on a read-only volume,
// are read without it.
func (s *Store[T]) Load(enabled bool) (value T, ok bool, err error) {

	if !enabled || s == nil || s.path == "" {
		return value, false, nil
	}

	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("error checking cache record %s: %w", s.path, err)
	}

	lock := flock.New(s.lockPath())

	switch err := lock.RLock(); {
	case err == nil:
		defer lock.Unlock()
	case lockUnavailable(err):
		// nothing can save to a read-only location so there is no writer
		// to race with
	default:
		return value, false, fmt.Errorf("error locking cache record %s: %w", s.path, err)
	}

	data, err := os.ReadFile(s.path)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("error reading cache record %s: %w", s.path, err)
	}

	var rec record

	if err := s.dec.Unmarshal(data, &rec); err != nil {
		return value, false, &CorruptError{Path: s.path, Err: err}
	}

	if rec.Kind != s.kind {
		return value, false, &CorruptError{Path: s.path,
			Err: fmt.Errorf("record holds %q, expected %q", rec.Kind, s.kind)}
	}

	if rec.Version != formatVersion {
		return value, false, &CorruptError{Path: s.path,
			Err: fmt.Errorf("unsupported record version %d", rec.Version)}
	}

	if err := s.dec.Unmarshal(rec.Payload, &value); err != nil {
		return value, false, &CorruptError{Path: s.path, Err: err}
	}

	return value, true, nil
}

// Save writes value to the record path, creating missing parent directories
// and replacing any existing record.  The record is written to a temporary
// file first and renamed into place so an interrupted save never leaves a
// partial record behind.  Save is a no-op when the path is unset.
func (s *Store[T]) Save(value T) error {

	if s == nil || s.path == "" {
		return nil
	}

	payload, err := s.enc.Marshal(value)

	if err != nil {
		return fmt.Errorf("error encoding cache record %s: %w", s.path, err)
	}

	rec := record{
		Kind:    s.kind,
		Version: formatVersion,
		Payload: payload,
	}

	if l, ok := any(value).(Lengther); ok {
		rec.Frames = l.Len()
	}

	data, err := s.enc.Marshal(rec)

	if err != nil {
		return fmt.Errorf("error encoding cache record %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating cache directory %s: %w", dir, err)
	}

	lock := flock.New(s.lockPath())

	if err := lock.Lock(); err != nil {
		return fmt.Errorf("error locking cache record %s: %w", s.path, err)
	}

	defer lock.Unlock()

	return writeAtomic(s.path, data)
}

// Frames returns the frame count stored in the record envelope without
// decoding the payload, ok is false when there is no record
func (s *Store[T]) Frames() (frames int, ok bool, err error) {

	if s == nil || s.path == "" {
		return 0, false, nil
	}

	data, err := os.ReadFile(s.path)

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("error reading cache record %s: %w", s.path, err)
	}

	var rec record

	if err := s.dec.Unmarshal(data, &rec); err != nil {
		return 0, false, &CorruptError{Path: s.path, Err: err}
	}

	return rec.Frames, true, nil
}

// Remove deletes the record and its lock file if they exist
func (s *Store[T]) Remove() error {

	if s == nil || s.path == "" {
		return nil
	}

	for _, p := range []string{s.path, s.lockPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error removing cache record %s: %w", p, err)
		}
	}

	return nil
}

func (s *Store[T]) lockPath() string {
	return s.path + ".lock"
}

// lockUnavailable reports whether err means the lock file can not be
// created at all, as opposed to the lock being contended or broken
func lockUnavailable(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}

// writeAtomic writes data to a temporary file in the directory of path,
// syncs it and renames it over path
func writeAtomic(path string, data []byte) error {

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")

	if err != nil {
		return fmt.Errorf("error creating temp file for %s: %w", path, err)
	}

	tmpName := tmp.Name()

	// clean up the temp file on any failure before the rename
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing cache record %s: %w", path, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing cache record %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing cache record %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("error replacing cache record %s: %w", path, err)
	}

	committed = true

	return nil
}

// Status is the outcome of LoadAligned
type Status int

const (
	// Miss means no usable record exists
	Miss Status = iota
	// Stale means a record exists but covers a different number of frames
	Stale
	// Hit means the record covers exactly the requested frames
	Hit
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// LoadAligned loads the record of s and only returns it when its length
// equals frames.  A stale record is not an error, callers recompute and
// overwrite it.
func LoadAligned[T Lengther](s *Store[T], enabled bool, frames int) (T, Status, error) {

	var zero T

	value, ok, err := s.Load(enabled)

	if err != nil {
		return zero, Miss, err
	}

	if !ok {
		return zero, Miss, nil
	}

	if value.Len() != frames {
		return zero, Stale, nil
	}

	return value, Hit, nil
}
