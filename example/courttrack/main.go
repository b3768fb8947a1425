/*
Example code showing how to track basketball players and the ball through a
video, repair the ball trajectory and split players into their teams.
*/
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/dnn"
	"github.com/courtvision/hooptrack/pipeline"
	"github.com/courtvision/hooptrack/team"
	"github.com/courtvision/hooptrack/tracker"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	configFile := flag.String("c", "", "Config file (yaml, toml or json), empty uses defaults")
	vidFile := flag.String("v", "../data/game.mp4", "Video file to run tracking on")
	modelFile := flag.String("m", "", "ONNX YOLOv8 model file, overrides detector.model")
	labelFile := flag.String("l", "", "Text file containing model labels, overrides detector.labels")
	readStub := flag.Bool("stub", false, "Read results cached by a previous run")

	flag.Parse()

	cfg, err := hooptrack.LoadConfig(*configFile)

	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if *modelFile != "" {
		cfg.Detector.Model = *modelFile
	}

	if *labelFile != "" {
		cfg.Detector.Labels = *labelFile
	}

	if *readStub {
		cfg.Stubs.ReadFromStub = true
	}

	logger, err := hooptrack.NewLogger(cfg.LogLevel)

	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}

	defer logger.Sync()

	frames, err := readVideo(*vidFile)

	if err != nil {
		logger.Fatal("error reading video", zap.String("file", *vidFile), zap.Error(err))
	}

	logger.Info("video loaded", zap.String("file", *vidFile), zap.Int("frames", len(frames)))

	detector, err := dnn.NewDetector(cfg.Detector, logger)

	if err != nil {
		logger.Fatal("error creating detector", zap.Error(err))
	}

	defer detector.Close()

	p := pipeline.New(cfg, detector, tracker.NewFromConfig(cfg.Tracker),
		team.NewPaletteClassifier(), logger)

	res, err := p.Run(frames)

	if err != nil {
		logger.Fatal("tracking pass failed", zap.Error(err))
	}

	summarise(logger, res)
}

// readVideo decodes every frame of the video file into memory
func readVideo(vidFile string) ([]hooptrack.Frame, error) {

	video, err := gocv.VideoCaptureFile(vidFile)

	if err != nil {
		return nil, err
	}

	defer video.Close()

	img := gocv.NewMat()
	defer img.Close()

	frames := make([]hooptrack.Frame, 0)

	for {
		// read the next frame from the video
		if ok := video.Read(&img); !ok {
			// reached last video frame
			break
		}

		if img.Empty() {
			continue
		}

		frame, err := img.ToImage()

		if err != nil {
			return nil, fmt.Errorf("error converting frame %d: %w", len(frames), err)
		}

		frames = append(frames, frame)
	}

	return frames, nil
}

// summarise logs per team player counts and ball coverage
func summarise(logger *zap.Logger, res *pipeline.Result) {

	players := make(map[hooptrack.Team]map[hooptrack.Identity]struct{})

	for _, frame := range res.Teams {
		for id, tm := range frame {
			if players[tm] == nil {
				players[tm] = make(map[hooptrack.Identity]struct{})
			}
			players[tm][id] = struct{}{}
		}
	}

	logger.Info("tracking summary",
		zap.Int("frames", res.Players.Len()),
		zap.Int("team1_players", len(players[hooptrack.Team1])),
		zap.Int("team2_players", len(players[hooptrack.Team2])),
		zap.Bool("ball_missing", res.BallMissing),
		zap.Int("ball_observed", res.BallStats.Observed),
		zap.Int("ball_rejected", res.BallStats.Rejected),
		zap.Int("ball_filled", res.BallStats.Filled),
	)
}
