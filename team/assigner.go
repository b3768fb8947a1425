// Package team assigns tracked players to one of two teams by classifying
// the appearance of their uniform.  Classifications are memoised per player
// identity and the memo is cleared at a fixed frame interval so lighting or
// camera changes are picked up.
package team

import (
	"fmt"
	"image"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/stub"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

const (
	// KindTeamAssignments names team assignment records in a stub.Store
	KindTeamAssignments = "team_assignments"

	// DefaultTeam1Label describes the uniform of team 1
	DefaultTeam1Label = "white shirt"
	// DefaultTeam2Label describes the uniform of team 2
	DefaultTeam2Label = "dark blue shirt"
	// DefaultResetEvery is the number of frames between memo resets
	DefaultResetEvery = 50
)

// NewStore returns a stub.Store for team assignment sequences
func NewStore(path string) *stub.Store[hooptrack.TeamAssignmentSequence] {
	return stub.New[hooptrack.TeamAssignmentSequence](path, KindTeamAssignments)
}

// subImager is implemented by the standard library image types
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Assigner maps player identities to teams
type Assigner struct {
	// Team1Label and Team2Label are the text descriptions passed to the
	// classifier.  Only an exact match of Team1Label gives Team1.
	Team1Label string
	Team2Label string
	// ResetEvery clears the memo on every frame number divisible by it
	ResetEvery int
	// CropSize scales player crops to a CropSize x CropSize square before
	// classification, zero passes the crop through unscaled
	CropSize int

	classifier hooptrack.Classifier
	store      *stub.Store[hooptrack.TeamAssignmentSequence]
	memo       map[hooptrack.Identity]hooptrack.Team
	log        *zap.Logger
}

// NewAssigner returns an Assigner with the default labels and reset
// interval.  store may be nil to disable caching.
func NewAssigner(classifier hooptrack.Classifier, store *stub.Store[hooptrack.TeamAssignmentSequence],
	logger *zap.Logger) *Assigner {

	return &Assigner{
		Team1Label: DefaultTeam1Label,
		Team2Label: DefaultTeam2Label,
		ResetEvery: DefaultResetEvery,
		classifier: classifier,
		store:      store,
		memo:       make(map[hooptrack.Identity]hooptrack.Team),
		log:        hooptrack.OrNop(logger).With(zap.String("component", "team_assigner")),
	}
}

// Reset forgets every memoised team
func (a *Assigner) Reset() {
	clear(a.memo)
}

// MemoSize returns the number of identities with a memoised team
func (a *Assigner) MemoSize() int {
	return len(a.memo)
}

// PlayerTeam returns the team of player id whose box is in frame.  A team
// already memoised for id is returned without classifying again.
func (a *Assigner) PlayerTeam(frame hooptrack.Frame, box hooptrack.BoundingBox, id hooptrack.Identity) (hooptrack.Team, error) {

	if team, ok := a.memo[id]; ok {
		return team, nil
	}

	region, ok := a.crop(frame, box)

	if !ok {
		// nothing visible to classify, fall back without remembering it so
		// a later frame can still classify the player
		return hooptrack.Team2, nil
	}

	label, err := a.classifier.Classify(region, []string{a.Team1Label, a.Team2Label})

	if err != nil {
		return 0, fmt.Errorf("error classifying player %d: %w", id, err)
	}

	team := hooptrack.Team2

	if label == a.Team1Label {
		team = hooptrack.Team1
	}

	a.memo[id] = team

	return team, nil
}

// crop returns the part of frame covered by box, scaled to CropSize when
// set.  ok is false when the box lies outside the frame.
func (a *Assigner) crop(frame hooptrack.Frame, box hooptrack.BoundingBox) (image.Image, bool) {

	if !box.Valid() {
		return nil, false
	}

	r := box.Rect().Intersect(frame.Bounds())

	if r.Empty() {
		return nil, false
	}

	var region image.Image

	if si, ok := frame.(subImager); ok {
		region = si.SubImage(r)
	} else {
		dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		xdraw.Copy(dst, image.Point{}, frame, r, xdraw.Src, nil)
		region = dst
	}

	if a.CropSize <= 0 {
		return region, true
	}

	scaled := image.NewRGBA(image.Rect(0, 0, a.CropSize, a.CropSize))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), region, region.Bounds(), xdraw.Src, nil)

	return scaled, true
}

// PlayerTeamsAcrossFrames returns the team of every tracked player in every
// frame.  playerTracks must be index aligned with frames.  A cached result
// covering exactly the given frames is returned when readFromStub is set.
func (a *Assigner) PlayerTeamsAcrossFrames(frames []hooptrack.Frame, playerTracks hooptrack.TrackSequence,
	readFromStub bool) (hooptrack.TeamAssignmentSequence, error) {

	cached, status, err := stub.LoadAligned(a.store, readFromStub, len(frames))

	if err != nil {
		return nil, err
	}

	switch status {
	case stub.Hit:
		a.log.Debug("using cache record", zap.String("path", a.store.Path()), zap.Int("frames", len(frames)))
		return cached, nil
	case stub.Stale:
		a.log.Debug("discarding stale cache record", zap.String("path", a.store.Path()), zap.Int("frames", len(frames)))
	}

	if len(playerTracks) != len(frames) {
		return nil, fmt.Errorf("player tracks cover %d frames, expected %d", len(playerTracks), len(frames))
	}

	resetEvery := a.ResetEvery
	if resetEvery <= 0 {
		resetEvery = DefaultResetEvery
	}

	assignments := make(hooptrack.TeamAssignmentSequence, 0, len(frames))
	calls := 0

	for frameNum, entry := range playerTracks {

		if frameNum%resetEvery == 0 {
			a.Reset()
		}

		assignment := make(hooptrack.TeamAssignment, len(entry))

		for _, id := range entry.Identities() {

			before := len(a.memo)
			team, err := a.PlayerTeam(frames[frameNum], entry[id], id)

			if err != nil {
				return nil, hooptrack.NewCapabilityError(hooptrack.CapabilityClassifier, frameNum, err)
			}

			if len(a.memo) > before {
				calls++
			}

			assignment[id] = team
		}

		assignments = append(assignments, assignment)
	}

	a.log.Info("team assignments computed",
		zap.Int("frames", len(assignments)),
		zap.Int("classifications", calls),
	)

	if err := a.store.Save(assignments); err != nil {
		return nil, err
	}

	return assignments, nil
}
