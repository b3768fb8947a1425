package hooptrack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DetectorConfig holds settings for running the object detector
type DetectorConfig struct {
	// Model is the path to the ONNX detection model
	Model string `mapstructure:"model"`
	// Labels is the path to the class labels file of the Model
	Labels string `mapstructure:"labels"`
	// BatchSize is the number of frames passed to the detector per call
	BatchSize int `mapstructure:"batch_size"`
	// Confidence is the minimum detection score kept
	Confidence float32 `mapstructure:"confidence"`
	// Workers is the number of batches run concurrently
	Workers int `mapstructure:"workers"`
	// InputSize is the square input tensor size of the Model
	InputSize int `mapstructure:"input_size"`
	// NMSThreshold is the IoU above which overlapping boxes are suppressed
	NMSThreshold float32 `mapstructure:"nms_threshold"`
}

// TrackerConfig holds the ByteTrack parameters
type TrackerConfig struct {
	FrameRate   int     `mapstructure:"frame_rate"`
	TrackBuffer int     `mapstructure:"track_buffer"`
	TrackThresh float32 `mapstructure:"track_thresh"`
	HighThresh  float32 `mapstructure:"high_thresh"`
	MatchThresh float32 `mapstructure:"match_thresh"`
	// PlayerClass is the detector class name of players
	PlayerClass string `mapstructure:"player_class"`
}

// BallConfig holds settings for ball selection and trajectory repair
type BallConfig struct {
	// Class is the detector class name of the ball
	Class string `mapstructure:"class"`
	// MaxDistance is the allowed top-left corner movement in pixels per
	// elapsed frame
	MaxDistance float64 `mapstructure:"max_distance"`
}

// TeamConfig holds settings for team classification
type TeamConfig struct {
	Team1Label string `mapstructure:"team1_label"`
	Team2Label string `mapstructure:"team2_label"`
	// ResetEvery is the window in frames after which the memo is cleared
	ResetEvery int `mapstructure:"reset_every"`
	// CropSize resizes player crops to a square of this size before
	// classification, zero leaves crops at their native size
	CropSize int `mapstructure:"crop_size"`
}

// StubConfig holds the cache record paths.  An empty path disables caching
// of that result.
type StubConfig struct {
	ReadFromStub bool   `mapstructure:"read"`
	Players      string `mapstructure:"players"`
	Ball         string `mapstructure:"ball"`
	Teams        string `mapstructure:"teams"`
}

// Config is the complete configuration of a tracking pass
type Config struct {
	Detector DetectorConfig `mapstructure:"detector"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Ball     BallConfig     `mapstructure:"ball"`
	Team     TeamConfig     `mapstructure:"team"`
	Stubs    StubConfig     `mapstructure:"stubs"`
	LogLevel string         `mapstructure:"log_level"`
}

// DefaultConfig returns a Config populated with default values
func DefaultConfig() Config {
	return Config{
		Detector: DetectorConfig{
			BatchSize:    20,
			Confidence:   0.5,
			Workers:      1,
			InputSize:    640,
			NMSThreshold: 0.45,
		},
		Tracker: TrackerConfig{
			FrameRate:   30,
			TrackBuffer: 30,
			TrackThresh: 0.5,
			HighThresh:  0.6,
			MatchThresh: 0.8,
			PlayerClass: "player",
		},
		Ball: BallConfig{
			Class:       "ball",
			MaxDistance: 25,
		},
		Team: TeamConfig{
			Team1Label: "white shirt",
			Team2Label: "dark blue shirt",
			ResetEvery: 50,
		},
		Stubs: StubConfig{
			Players: "stubs/player_track_stubs.cbor",
			Ball:    "stubs/ball_track_stubs.cbor",
			Teams:   "stubs/player_assignment_stub.cbor",
		},
		LogLevel: "info",
	}
}

// setDefaults registers every default value with viper so that partial
// config files and environment variables merge on top of them
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("detector.model", cfg.Detector.Model)
	v.SetDefault("detector.labels", cfg.Detector.Labels)
	v.SetDefault("detector.batch_size", cfg.Detector.BatchSize)
	v.SetDefault("detector.confidence", cfg.Detector.Confidence)
	v.SetDefault("detector.workers", cfg.Detector.Workers)
	v.SetDefault("detector.input_size", cfg.Detector.InputSize)
	v.SetDefault("detector.nms_threshold", cfg.Detector.NMSThreshold)

	v.SetDefault("tracker.frame_rate", cfg.Tracker.FrameRate)
	v.SetDefault("tracker.track_buffer", cfg.Tracker.TrackBuffer)
	v.SetDefault("tracker.track_thresh", cfg.Tracker.TrackThresh)
	v.SetDefault("tracker.high_thresh", cfg.Tracker.HighThresh)
	v.SetDefault("tracker.match_thresh", cfg.Tracker.MatchThresh)
	v.SetDefault("tracker.player_class", cfg.Tracker.PlayerClass)

	v.SetDefault("ball.class", cfg.Ball.Class)
	v.SetDefault("ball.max_distance", cfg.Ball.MaxDistance)

	v.SetDefault("team.team1_label", cfg.Team.Team1Label)
	v.SetDefault("team.team2_label", cfg.Team.Team2Label)
	v.SetDefault("team.reset_every", cfg.Team.ResetEvery)
	v.SetDefault("team.crop_size", cfg.Team.CropSize)

	v.SetDefault("stubs.read", cfg.Stubs.ReadFromStub)
	v.SetDefault("stubs.players", cfg.Stubs.Players)
	v.SetDefault("stubs.ball", cfg.Stubs.Ball)
	v.SetDefault("stubs.teams", cfg.Stubs.Teams)

	v.SetDefault("log_level", cfg.LogLevel)
}

// LoadConfig reads the configuration file at path on top of the defaults.
// An empty path loads the defaults plus any HOOPTRACK_ environment
// overrides, eg: HOOPTRACK_DETECTOR_BATCH_SIZE=8
func LoadConfig(path string) (Config, error) {

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("hooptrack")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration values are usable
func (c Config) Validate() error {

	var errs []error

	if c.Detector.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("detector.batch_size must be positive, got %d", c.Detector.BatchSize))
	}

	if c.Detector.Confidence < 0 || c.Detector.Confidence > 1 {
		errs = append(errs, fmt.Errorf("detector.confidence must be within [0,1], got %v", c.Detector.Confidence))
	}

	if c.Detector.Workers <= 0 {
		errs = append(errs, fmt.Errorf("detector.workers must be positive, got %d", c.Detector.Workers))
	}

	if c.Ball.MaxDistance <= 0 {
		errs = append(errs, fmt.Errorf("ball.max_distance must be positive, got %v", c.Ball.MaxDistance))
	}

	if c.Team.ResetEvery <= 0 {
		errs = append(errs, fmt.Errorf("team.reset_every must be positive, got %d", c.Team.ResetEvery))
	}

	if c.Team.Team1Label == "" || c.Team.Team1Label == c.Team.Team2Label {
		errs = append(errs, fmt.Errorf("team labels must be non-empty and distinct, got %q and %q",
			c.Team.Team1Label, c.Team.Team2Label))
	}

	if c.Tracker.PlayerClass == "" || c.Ball.Class == "" {
		errs = append(errs, errors.New("tracker.player_class and ball.class must be set"))
	}

	return errors.Join(errs...)
}
