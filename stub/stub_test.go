package stub_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/stub"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTracks() hooptrack.TrackSequence {
	return hooptrack.TrackSequence{
		{
			1: hooptrack.NewBoundingBox(79.5, 205.25, 169, 609),
			7: hooptrack.NewBoundingBox(196, 222, 258, 451),
		},
		{},
		{12: hooptrack.NewBoundingBox(-3, 0.125, 1e4, 2)},
	}
}

func sampleTeams() hooptrack.TeamAssignmentSequence {
	return hooptrack.TeamAssignmentSequence{
		{1: hooptrack.Team1, 7: hooptrack.Team2},
		{},
		{12: hooptrack.Team2},
	}
}

func TestRoundTripTrackSequence(t *testing.T) {

	path := filepath.Join(t.TempDir(), "stubs", "nested", "player_track_stubs.cbor")
	store := stub.New[hooptrack.TrackSequence](path, "player_tracks")

	want := sampleTracks()
	require.NoError(t, store.Save(want))

	got, ok, err := store.Load(true)
	require.NoError(t, err)
	require.True(t, ok)

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	frames, ok, err := store.Frames()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, frames)
}

func TestRoundTripTeamAssignments(t *testing.T) {

	store := stub.New[hooptrack.TeamAssignmentSequence](
		filepath.Join(t.TempDir(), "player_assignment_stub.cbor"), "team_assignments")

	want := sampleTeams()
	require.NoError(t, store.Save(want))

	got, ok, err := store.Load(true)
	require.NoError(t, err)
	require.True(t, ok)

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAbsent(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "tracks.cbor")

	saved := stub.New[hooptrack.TrackSequence](path, "player_tracks")
	require.NoError(t, saved.Save(sampleTracks()))

	tests := []struct {
		name    string
		store   *stub.Store[hooptrack.TrackSequence]
		enabled bool
	}{
		{"disabled", saved, false},
		{"empty path", stub.New[hooptrack.TrackSequence]("", "player_tracks"), true},
		{"no record", stub.New[hooptrack.TrackSequence](filepath.Join(dir, "other.cbor"), "player_tracks"), true},
		{"nil store", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := tc.store.Load(tc.enabled)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestLoadCorruptRecord(t *testing.T) {

	path := filepath.Join(t.TempDir(), "tracks.cbor")
	require.NoError(t, os.WriteFile(path, []byte("definitely not cbor"), 0o644))

	_, ok, err := stub.New[hooptrack.TrackSequence](path, "player_tracks").Load(true)
	require.Error(t, err)
	assert.False(t, ok)

	var corrupt *stub.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)
}

func TestLoadWrongKindIsCorrupt(t *testing.T) {

	path := filepath.Join(t.TempDir(), "stub.cbor")
	require.NoError(t, stub.New[hooptrack.TeamAssignmentSequence](path, "team_assignments").
		Save(sampleTeams()))

	_, _, err := stub.New[hooptrack.TrackSequence](path, "player_tracks").Load(true)

	var corrupt *stub.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Contains(t, err.Error(), "team_assignments")
}

func TestSaveOverwrites(t *testing.T) {

	path := filepath.Join(t.TempDir(), "tracks.cbor")
	store := stub.New[hooptrack.TrackSequence](path, "player_tracks")

	require.NoError(t, store.Save(sampleTracks()))

	short := hooptrack.TrackSequence{{3: hooptrack.NewBoundingBox(1, 1, 2, 2)}}
	require.NoError(t, store.Save(short))

	got, ok, err := store.Load(true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, short, got)

	// no temp files left behind next to the record
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSaveNoPathIsNoop(t *testing.T) {
	store := stub.New[hooptrack.TrackSequence]("", "player_tracks")
	assert.NoError(t, store.Save(sampleTracks()))
}

func TestSaveDirectoryFailure(t *testing.T) {

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// parent "directory" is a regular file
	store := stub.New[hooptrack.TrackSequence](filepath.Join(blocker, "tracks.cbor"), "player_tracks")
	err := store.Save(sampleTracks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error creating cache directory")
}

func TestRemove(t *testing.T) {

	path := filepath.Join(t.TempDir(), "tracks.cbor")
	store := stub.New[hooptrack.TrackSequence](path, "player_tracks")

	require.NoError(t, store.Save(sampleTracks()))
	require.FileExists(t, path+".lock")

	require.NoError(t, store.Remove())
	require.NoError(t, store.Remove())
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".lock")

	_, ok, err := store.Load(true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFromReadOnlyDirectory(t *testing.T) {

	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := filepath.Join(t.TempDir(), "shipped")
	path := filepath.Join(dir, "tracks.cbor")
	store := stub.New[hooptrack.TrackSequence](path, "player_tracks")

	require.NoError(t, store.Save(sampleTracks()))
	require.NoError(t, os.Remove(path+".lock"))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	got, ok, err := store.Load(true)
	require.NoError(t, err)
	require.True(t, ok)

	if diff := cmp.Diff(sampleTracks(), got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("loaded tracks mismatch (-want +got):\n%s", diff)
	}

	assert.NoFileExists(t, path+".lock")
}
