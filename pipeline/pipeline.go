// Package pipeline wires detection, tracking, trajectory repair and team
// assignment into a single pass over a video.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/team"
	"github.com/courtvision/hooptrack/tracking"
	"github.com/courtvision/hooptrack/trajectory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result holds everything computed for a video, every sequence is index
// aligned with the frames
type Result struct {
	Players hooptrack.TrackSequence
	// Ball is the repaired ball track
	Ball hooptrack.TrackSequence
	// BallRaw is the ball track as detected, before repair
	BallRaw hooptrack.TrackSequence
	// BallMissing is set when the ball was never detected, Ball is then
	// empty in every frame and should not be rendered
	BallMissing bool
	BallStats   trajectory.Stats
	Teams       hooptrack.TeamAssignmentSequence
}

// Pipeline runs a complete tracking pass
type Pipeline struct {
	detections   *hooptrack.SharedDetections
	players      *tracking.PlayerTracker
	ball         *tracking.BallTracker
	teams        *team.Assigner
	readFromStub bool
	runID        string
	log          *zap.Logger
}

// New builds a Pipeline from cfg using the given collaborators.  A fresh
// run ID is attached to every log entry of the pipeline.
func New(cfg hooptrack.Config, detector hooptrack.Detector, tracker hooptrack.MultiObjectTracker,
	classifier hooptrack.Classifier, logger *zap.Logger) *Pipeline {

	runID := uuid.NewString()
	log := hooptrack.OrNop(logger).With(zap.String("run_id", runID))

	adapter := hooptrack.NewDetectionAdapter(detector,
		hooptrack.WithBatchSize(cfg.Detector.BatchSize),
		hooptrack.WithConfidence(cfg.Detector.Confidence),
		hooptrack.WithWorkers(cfg.Detector.Workers),
		hooptrack.WithLogger(log),
	)

	// one detector serves both classes, run it once per pass
	detections := hooptrack.NewSharedDetections(adapter, log)

	players := tracking.NewPlayerTracker(detections, tracker,
		tracking.NewTrackStore(cfg.Stubs.Players, tracking.KindPlayerTracks), log)
	players.SetClass(cfg.Tracker.PlayerClass)

	ball := tracking.NewBallTracker(detections,
		tracking.NewTrackStore(cfg.Stubs.Ball, tracking.KindBallTracks), log)
	ball.SetClass(cfg.Ball.Class)
	ball.SetMaxDistance(cfg.Ball.MaxDistance)

	assigner := team.NewAssigner(classifier, team.NewStore(cfg.Stubs.Teams), log)
	assigner.Team1Label = cfg.Team.Team1Label
	assigner.Team2Label = cfg.Team.Team2Label
	assigner.ResetEvery = cfg.Team.ResetEvery
	assigner.CropSize = cfg.Team.CropSize

	return &Pipeline{
		detections:   detections,
		players:      players,
		ball:         ball,
		teams:        assigner,
		readFromStub: cfg.Stubs.ReadFromStub,
		runID:        runID,
		log:          log.With(zap.String("component", "pipeline")),
	}
}

// RunID returns the identifier attached to the logs of this pipeline
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run processes frames.  Any failure aborts the pass, results cached by
// stages which already completed are kept.
func (p *Pipeline) Run(frames []hooptrack.Frame) (*Result, error) {

	start := time.Now()
	defer p.detections.Release()

	p.log.Info("tracking pass started",
		zap.Int("frames", len(frames)),
		zap.Bool("read_from_stub", p.readFromStub),
	)

	players, err := p.players.GetObjectTracks(frames, p.readFromStub)

	if err != nil {
		return nil, fmt.Errorf("player tracking: %w", err)
	}

	rawBall, err := p.ball.GetObjectTracks(frames, p.readFromStub)

	if err != nil {
		return nil, fmt.Errorf("ball tracking: %w", err)
	}

	res := &Result{
		Players: players,
		BallRaw: rawBall,
	}

	res.Ball, res.BallStats, err = p.ball.RepairTrajectory(rawBall)

	switch {
	case errors.Is(err, trajectory.ErrAllMissing):
		res.BallMissing = true
	case err != nil:
		return nil, fmt.Errorf("ball trajectory: %w", err)
	}

	res.Teams, err = p.teams.PlayerTeamsAcrossFrames(frames, players, p.readFromStub)

	if err != nil {
		return nil, fmt.Errorf("team assignment: %w", err)
	}

	p.log.Info("tracking pass finished",
		zap.Int("frames", len(frames)),
		zap.Bool("ball_missing", res.BallMissing),
		zap.Duration("elapsed", time.Since(start)),
	)

	return res, nil
}
