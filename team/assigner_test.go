package team_test

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/internal/testsupport"
	"github.com/courtvision/hooptrack/team"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var playerBox = hooptrack.NewBoundingBox(10, 10, 30, 50)

// steadyTracks has the same single player visible in every frame
func steadyTracks(n int) hooptrack.TrackSequence {
	seq := make(hooptrack.TrackSequence, n)
	for i := range seq {
		seq[i] = hooptrack.TrackEntry{7: playerBox}
	}
	return seq
}

func TestMemoWithinWindow(t *testing.T) {

	clf := &testsupport.FakeClassifier{Label: team.DefaultTeam1Label}
	a := team.NewAssigner(clf, nil, zaptest.NewLogger(t))

	teams, err := a.PlayerTeamsAcrossFrames(testsupport.Frames(50), steadyTracks(50), false)
	require.NoError(t, err)

	assert.Equal(t, 1, clf.Calls())
	require.Len(t, teams, 50)

	for i, assignment := range teams {
		assert.Equal(t, hooptrack.TeamAssignment{7: hooptrack.Team1}, assignment, "frame %d", i)
	}
}

func TestMemoResetAtWindowBoundary(t *testing.T) {

	clf := &testsupport.FakeClassifier{Label: team.DefaultTeam1Label}
	a := team.NewAssigner(clf, nil, nil)

	_, err := a.PlayerTeamsAcrossFrames(testsupport.Frames(51), steadyTracks(51), false)
	require.NoError(t, err)
	assert.Equal(t, 2, clf.Calls())

	clf = &testsupport.FakeClassifier{Label: team.DefaultTeam1Label}
	a = team.NewAssigner(clf, nil, nil)
	a.ResetEvery = 10

	_, err = a.PlayerTeamsAcrossFrames(testsupport.Frames(35), steadyTracks(35), false)
	require.NoError(t, err)
	assert.Equal(t, 4, clf.Calls(), "frames 0, 10, 20 and 30")
}

func TestTeamCanFlipAcrossBoundary(t *testing.T) {

	clf := &testsupport.FakeClassifier{}
	clf.Fn = func(image.Image, []string) string {
		if clf.Calls() == 1 {
			return team.DefaultTeam1Label
		}
		return team.DefaultTeam2Label
	}

	a := team.NewAssigner(clf, nil, nil)

	teams, err := a.PlayerTeamsAcrossFrames(testsupport.Frames(60), steadyTracks(60), false)
	require.NoError(t, err)

	assert.Equal(t, hooptrack.Team1, teams[49][7])
	assert.Equal(t, hooptrack.Team2, teams[50][7])
}

func TestLabelMapping(t *testing.T) {

	tests := []struct {
		label string
		want  hooptrack.Team
	}{
		{team.DefaultTeam1Label, hooptrack.Team1},
		{team.DefaultTeam2Label, hooptrack.Team2},
		{"White Shirt", hooptrack.Team2},
		{"something else", hooptrack.Team2},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			clf := &testsupport.FakeClassifier{Label: tc.label}
			a := team.NewAssigner(clf, nil, nil)

			got, err := a.PlayerTeam(testsupport.Frame{}, playerBox, 3)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, 1, a.MemoSize())
		})
	}
}

func TestClassifierReceivesBothLabels(t *testing.T) {

	var seen []string

	clf := &testsupport.FakeClassifier{Fn: func(_ image.Image, labels []string) string {
		seen = labels
		return labels[0]
	}}

	a := team.NewAssigner(clf, nil, nil)
	a.Team1Label = "red"
	a.Team2Label = "green"

	got, err := a.PlayerTeam(testsupport.Frame{}, playerBox, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"red", "green"}, seen)
	assert.Equal(t, hooptrack.Team1, got)
}

func TestCropClippedToFrame(t *testing.T) {

	clf := &testsupport.FakeClassifier{Label: team.DefaultTeam2Label}
	a := team.NewAssigner(clf, nil, nil)

	// corners reversed and partly outside a 64x64 frame
	_, err := a.PlayerTeam(testsupport.Frame{}, hooptrack.NewBoundingBox(80, 40, 50, -5), 1)
	require.NoError(t, err)

	require.Len(t, clf.Regions(), 1)
	assert.Equal(t, image.Rect(0, 0, 14, 40), clf.Regions()[0])
}

func TestCropUsesSubImage(t *testing.T) {

	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))

	clf := &testsupport.FakeClassifier{Label: team.DefaultTeam2Label}
	a := team.NewAssigner(clf, nil, nil)

	_, err := a.PlayerTeam(frame, playerBox, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 10, 30, 50), clf.Regions()[0])
}

func TestCropResized(t *testing.T) {

	clf := &testsupport.FakeClassifier{Label: team.DefaultTeam2Label}
	a := team.NewAssigner(clf, nil, nil)
	a.CropSize = 32

	_, err := a.PlayerTeam(testsupport.Frame{}, playerBox, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), clf.Regions()[0])
}

func TestEmptyCropNotMemoised(t *testing.T) {

	clf := &testsupport.FakeClassifier{Label: team.DefaultTeam1Label}
	a := team.NewAssigner(clf, nil, nil)

	got, err := a.PlayerTeam(testsupport.Frame{}, hooptrack.NewBoundingBox(200, 200, 300, 300), 4)
	require.NoError(t, err)

	assert.Equal(t, hooptrack.Team2, got)
	assert.Zero(t, clf.Calls())
	assert.Zero(t, a.MemoSize())

	// once visible the player is classified
	got, err = a.PlayerTeam(testsupport.Frame{}, playerBox, 4)
	require.NoError(t, err)
	assert.Equal(t, hooptrack.Team1, got)
	assert.Equal(t, 1, clf.Calls())
}

func TestClassifierFailure(t *testing.T) {

	clf := &testsupport.FakeClassifier{Err: testsupport.ErrInjected}
	path := filepath.Join(t.TempDir(), "player_assignment_stub.cbor")
	store := team.NewStore(path)

	a := team.NewAssigner(clf, store, nil)

	tracks := hooptrack.TrackSequence{{}, {}, {2: playerBox}}

	_, err := a.PlayerTeamsAcrossFrames(testsupport.Frames(3), tracks, true)
	require.ErrorIs(t, err, testsupport.ErrInjected)

	var capErr *hooptrack.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, hooptrack.CapabilityClassifier, capErr.Capability)
	assert.Equal(t, 2, capErr.Frame)

	_, ok, err := store.Load(true)
	require.NoError(t, err)
	assert.False(t, ok, "nothing cached for a failed pass")
}

func TestAssignmentsCached(t *testing.T) {

	path := filepath.Join(t.TempDir(), "stubs", "player_assignment_stub.cbor")

	clf := &testsupport.FakeClassifier{Label: team.DefaultTeam1Label}
	tracks := hooptrack.TrackSequence{
		{1: playerBox, 2: hooptrack.NewBoundingBox(40, 10, 60, 50)},
		{},
		{2: hooptrack.NewBoundingBox(41, 10, 61, 50)},
	}

	first, err := team.NewAssigner(clf, team.NewStore(path), nil).
		PlayerTeamsAcrossFrames(testsupport.Frames(3), tracks, true)
	require.NoError(t, err)
	assert.Equal(t, 2, clf.Calls())

	core, logs := observer.New(zapcore.DebugLevel)

	second, err := team.NewAssigner(clf, team.NewStore(path), zap.New(core)).
		PlayerTeamsAcrossFrames(testsupport.Frames(3), tracks, true)
	require.NoError(t, err)
	assert.Equal(t, 2, clf.Calls(), "served from cache")
	assert.Equal(t, 1, logs.FilterMessage("using cache record").Len())

	if diff := cmp.Diff(first, second, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("cached assignments mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackLengthMismatch(t *testing.T) {

	a := team.NewAssigner(&testsupport.FakeClassifier{}, nil, nil)

	_, err := a.PlayerTeamsAcrossFrames(testsupport.Frames(3), steadyTracks(2), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cover 2 frames")
}

func TestPaletteClassifier(t *testing.T) {

	clf := team.NewPaletteClassifier()
	labels := []string{team.DefaultTeam1Label, team.DefaultTeam2Label}

	white := testsupport.Frame{Fill: color.RGBA{R: 250, G: 248, B: 240, A: 255}}
	navy := testsupport.Frame{Fill: color.RGBA{R: 10, G: 20, B: 70, A: 255}}

	got, err := clf.Classify(white, labels)
	require.NoError(t, err)
	assert.Equal(t, team.DefaultTeam1Label, got)

	got, err = clf.Classify(navy, labels)
	require.NoError(t, err)
	assert.Equal(t, team.DefaultTeam2Label, got)

	_, err = clf.Classify(white, []string{"green shirt"})
	assert.ErrorIs(t, err, team.ErrNoKnownLabel)
}

func TestPaletteClassifierReadsTorso(t *testing.T) {

	// white shirt over dark shorts, the torso band decides
	img := image.NewRGBA(image.Rect(0, 0, 20, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 20; x++ {
			c := color.RGBA{R: 240, G: 240, B: 240, A: 255}
			if y >= 20 {
				c = color.RGBA{R: 20, G: 30, B: 90, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	got, err := team.NewPaletteClassifier().Classify(img.SubImage(image.Rect(0, 0, 20, 40)),
		[]string{team.DefaultTeam1Label, team.DefaultTeam2Label})
	require.NoError(t, err)
	assert.Equal(t, team.DefaultTeam1Label, got)
}
