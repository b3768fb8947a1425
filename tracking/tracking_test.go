package tracking_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/internal/testsupport"
	"github.com/courtvision/hooptrack/stub"
	"github.com/courtvision/hooptrack/tracking"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func playerScript() map[int][]hooptrack.Detection {
	return map[int][]hooptrack.Detection{
		0: {
			testsupport.Det(testsupport.ClassPlayer, 0.9, 10, 10, 50, 120),
			testsupport.Det(testsupport.ClassReferee, 0.9, 300, 10, 340, 120),
			testsupport.Det(testsupport.ClassPlayer, 0.8, 100, 10, 140, 120),
		},
		1: {
			testsupport.Det(testsupport.ClassPlayer, 0.9, 12, 10, 52, 120),
		},
		3: {
			testsupport.Det(testsupport.ClassBall, 0.7, 60, 60, 70, 70),
		},
	}
}

func newPlayerTracker(t *testing.T, det *testsupport.FakeDetector, trk hooptrack.MultiObjectTracker,
	path string) *tracking.PlayerTracker {

	t.Helper()

	var store *stub.Store[hooptrack.TrackSequence]
	if path != "" {
		store = tracking.NewTrackStore(path, tracking.KindPlayerTracks)
	}

	return tracking.NewPlayerTracker(
		hooptrack.NewDetectionAdapter(det, hooptrack.WithBatchSize(2)),
		trk, store, zaptest.NewLogger(t))
}

func TestPlayerTracksKeepOnlyPlayers(t *testing.T) {

	det := testsupport.NewFakeDetector(playerScript())
	trk := testsupport.NewFakeTracker()
	p := newPlayerTracker(t, det, trk, "")

	tracks, err := p.GetObjectTracks(testsupport.Frames(4), false)
	require.NoError(t, err)

	want := hooptrack.TrackSequence{
		// fake tracker numbers detections by position, the referee took 2
		{
			1: hooptrack.NewBoundingBox(10, 10, 50, 120),
			3: hooptrack.NewBoundingBox(100, 10, 140, 120),
		},
		{1: hooptrack.NewBoundingBox(12, 10, 52, 120)},
		{},
		{},
	}

	if diff := cmp.Diff(want, tracks, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("tracks mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, trk.Resets())
	assert.Equal(t, 4, trk.Calls())
}

func TestPlayerTracksCacheHit(t *testing.T) {

	path := filepath.Join(t.TempDir(), "player_track_stubs.cbor")

	cached := hooptrack.TrackSequence{
		{4: hooptrack.NewBoundingBox(1, 2, 3, 4)},
		{},
		{4: hooptrack.NewBoundingBox(2, 3, 4, 5)},
	}
	require.NoError(t, tracking.NewTrackStore(path, tracking.KindPlayerTracks).Save(cached))

	det := testsupport.NewFakeDetector(playerScript())
	trk := testsupport.NewFakeTracker()
	p := newPlayerTracker(t, det, trk, path)

	tracks, err := p.GetObjectTracks(testsupport.Frames(3), true)
	require.NoError(t, err)

	if diff := cmp.Diff(cached, tracks, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("cached tracks mismatch (-want +got):\n%s", diff)
	}

	assert.Zero(t, det.Calls())
	assert.Zero(t, trk.Calls())
	assert.Zero(t, trk.Resets())
}

func TestPlayerTracksStaleCacheRecomputed(t *testing.T) {

	path := filepath.Join(t.TempDir(), "player_track_stubs.cbor")
	store := tracking.NewTrackStore(path, tracking.KindPlayerTracks)

	require.NoError(t, store.Save(hooptrack.TrackSequence{{9: hooptrack.NewBoundingBox(1, 1, 2, 2)}}))

	core, logs := observer.New(zapcore.DebugLevel)

	det := testsupport.NewFakeDetector(playerScript())
	p := tracking.NewPlayerTracker(hooptrack.NewDetectionAdapter(det),
		testsupport.NewFakeTracker(), store, zap.New(core))

	tracks, err := p.GetObjectTracks(testsupport.Frames(4), true)
	require.NoError(t, err)
	assert.Len(t, tracks, 4)
	assert.Equal(t, 1, det.Calls())
	assert.Equal(t, 1, logs.FilterMessage("discarding stale cache record").Len())

	saved, ok, err := store.Load(true)
	require.NoError(t, err)
	require.True(t, ok)

	if diff := cmp.Diff(tracks, saved, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("persisted tracks mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayerTracksIgnoreCacheWhenDisabled(t *testing.T) {

	path := filepath.Join(t.TempDir(), "player_track_stubs.cbor")
	require.NoError(t, tracking.NewTrackStore(path, tracking.KindPlayerTracks).
		Save(hooptrack.TrackSequence{{}, {}, {}, {}}))

	det := testsupport.NewFakeDetector(playerScript())
	p := newPlayerTracker(t, det, testsupport.NewFakeTracker(), path)

	tracks, err := p.GetObjectTracks(testsupport.Frames(4), false)
	require.NoError(t, err)
	assert.Equal(t, 2, det.Calls())
	assert.Len(t, tracks[0], 2)
}

func TestPlayerTracksTrackerFailure(t *testing.T) {

	path := filepath.Join(t.TempDir(), "player_track_stubs.cbor")

	trk := testsupport.NewFakeTracker()
	trk.FailAt = 2

	p := newPlayerTracker(t, testsupport.NewFakeDetector(playerScript()), trk, path)

	_, err := p.GetObjectTracks(testsupport.Frames(4), true)
	require.ErrorIs(t, err, testsupport.ErrInjected)
	assert.True(t, hooptrack.IsCapability(err, hooptrack.CapabilityTracker))

	var capErr *hooptrack.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Frame)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "no cache written on failure")
}

func TestPlayerTracksDetectorFailure(t *testing.T) {

	det := testsupport.NewFakeDetector(playerScript())
	det.FailAt = 3

	trk := testsupport.NewFakeTracker()
	p := newPlayerTracker(t, det, trk, "")

	_, err := p.GetObjectTracks(testsupport.Frames(4), false)
	require.ErrorIs(t, err, testsupport.ErrInjected)
	assert.True(t, hooptrack.IsCapability(err, hooptrack.CapabilityDetector))
	assert.Zero(t, trk.Calls())
}

func TestPlayerTracksCorruptCacheIsFatal(t *testing.T) {

	path := filepath.Join(t.TempDir(), "player_track_stubs.cbor")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0o644))

	det := testsupport.NewFakeDetector(playerScript())
	p := newPlayerTracker(t, det, testsupport.NewFakeTracker(), path)

	_, err := p.GetObjectTracks(testsupport.Frames(4), true)

	var corrupt *stub.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Zero(t, det.Calls())
}

func TestPlayerTracksMissingClass(t *testing.T) {

	det := testsupport.NewFakeDetector(playerScript())
	det.Names = hooptrack.ClassTable{"ball", "hoop", "athlete", "referee"}

	p := newPlayerTracker(t, det, testsupport.NewFakeTracker(), "")

	_, err := p.GetObjectTracks(testsupport.Frames(4), false)
	require.Error(t, err)
	assert.True(t, hooptrack.IsCapability(err, hooptrack.CapabilityDetector))
	assert.Contains(t, err.Error(), `"player"`)
}

func TestPlayerTracksCustomClass(t *testing.T) {

	det := testsupport.NewFakeDetector(playerScript())
	p := newPlayerTracker(t, det, testsupport.NewFakeTracker(), "")
	p.SetClass("referee")

	tracks, err := p.GetObjectTracks(testsupport.Frames(2), false)
	require.NoError(t, err)

	assert.Equal(t, hooptrack.TrackEntry{2: hooptrack.NewBoundingBox(300, 10, 340, 120)}, tracks[0])
	assert.Empty(t, tracks[1])
}

// untracked leaves every detection without an identity
type untracked struct{}

func (untracked) Update(set hooptrack.DetectionSet) (hooptrack.DetectionSet, error) {
	return set, nil
}

func (untracked) Reset() {}

func TestPlayerTracksDropUntracked(t *testing.T) {

	p := newPlayerTracker(t, testsupport.NewFakeDetector(playerScript()), untracked{}, "")

	tracks, err := p.GetObjectTracks(testsupport.Frames(2), false)
	require.NoError(t, err)

	for _, entry := range tracks {
		assert.Empty(t, entry)
	}
}

func TestPlayerTracksEmptyVideo(t *testing.T) {

	det := testsupport.NewFakeDetector(nil)
	p := newPlayerTracker(t, det, testsupport.NewFakeTracker(), "")

	tracks, err := p.GetObjectTracks(nil, false)
	require.NoError(t, err)
	assert.Empty(t, tracks)
	assert.Zero(t, det.Calls())
}
