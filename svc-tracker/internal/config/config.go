// Package config reads the tracker's command line and environment.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	api "github.com/etesami/camshift-tracker/api"
	"github.com/etesami/camshift-tracker/pkg/camshift"
	"github.com/etesami/camshift-tracker/pkg/colorhist"
	"github.com/etesami/camshift-tracker/pkg/utils"
	"github.com/joho/godotenv"
)

const (
	BackendOpenCV   = "opencv"
	BackendSoftware = "software"
)

type Config struct {
	// VideoPath is the file to read; empty selects CameraDevice.
	VideoPath    string
	CameraDevice int
	WindowName   string
	SourceId     string

	Backend      string
	HistBins     [2]int
	Criteria     camshift.TermCriteria
	SelectPollMs int

	SaveImage          bool
	SaveImagePath      string
	SaveImageFrequency int

	MetricAddr      string
	MetricPort      string
	ProcTimeBuckets []float64
	SentDataBuckets []float64
	RttTimeBuckets  []float64

	// RemoteSink is nil when no sink is configured.
	RemoteSink *api.Service
}

// LoadEnvFile loads path into the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading env file [%s]: %v", path, err)
	}
	return nil
}

// Load parses args (without the program name) and the environment.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("camshift-tracker", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var video string
	fs.StringVar(&video, "video", "", "path to a video file; camera is used when empty")
	fs.StringVar(&video, "v", "", "alias for --video")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("error parsing arguments: %v", err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	c, err := FromEnv()
	if err != nil {
		return nil, err
	}
	c.VideoPath = video
	return c, nil
}

// FromEnv reads every setting except the video path from the environment.
func FromEnv() (*Config, error) {
	c := &Config{
		WindowName:         envOr("WINDOW_NAME", "frame"),
		SourceId:           envOr("SOURCE_ID", "camera"),
		Backend:            envOr("TRACKER_BACKEND", BackendOpenCV),
		HistBins:           colorhist.DefaultBins,
		Criteria:           camshift.DefaultCriteria,
		SaveImage:          os.Getenv("SAVE_IMAGE") == "true",
		SaveImagePath:      envOr("SAVE_IMAGE_PATH", "."),
		MetricAddr:         os.Getenv("METRIC_ADDR"),
		MetricPort:         os.Getenv("METRIC_PORT"),
		ProcTimeBuckets:    utils.ParseBuckets(os.Getenv("PROC_TIME_BUCKETS")),
		SentDataBuckets:    utils.ParseBuckets(os.Getenv("SENT_DATA_BUCKETS")),
		RttTimeBuckets:     utils.ParseBuckets(os.Getenv("RTT_TIME_BUCKETS")),
		SelectPollMs:       30,
		SaveImageFrequency: 1,
	}
	if c.Backend != BackendOpenCV && c.Backend != BackendSoftware {
		return nil, fmt.Errorf("unknown TRACKER_BACKEND [%s]", c.Backend)
	}

	var err error
	if c.CameraDevice, err = envInt("CAMERA_DEVICE", 0); err != nil {
		return nil, err
	}
	if c.SelectPollMs, err = envInt("SELECT_POLL_MS", c.SelectPollMs); err != nil {
		return nil, err
	}
	if c.SaveImageFrequency, err = envInt("SAVE_IMAGE_FREQUENCY", c.SaveImageFrequency); err != nil {
		return nil, err
	}
	if c.Criteria.MaxCount, err = envInt("TERM_MAX_ITER", c.Criteria.MaxCount); err != nil {
		return nil, err
	}
	if v := os.Getenv("TERM_EPSILON"); v != "" {
		if c.Criteria.Epsilon, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid TERM_EPSILON [%s]: %v", v, err)
		}
	}

	bins, err := utils.ParseInts(os.Getenv("HIST_BINS"))
	if err != nil {
		return nil, fmt.Errorf("invalid HIST_BINS: %v", err)
	}
	if bins != nil {
		if len(bins) != 2 || bins[0] <= 0 || bins[1] <= 0 {
			return nil, fmt.Errorf("HIST_BINS must be two positive values, got %v", bins)
		}
		c.HistBins = [2]int{bins[0], bins[1]}
	}

	sinkHost := os.Getenv("REMOTE_SINK_HOST")
	sinkPort := os.Getenv("REMOTE_SINK_PORT")
	if sinkHost != "" && sinkPort != "" {
		c.RemoteSink = &api.Service{Address: sinkHost, Port: sinkPort}
	}
	return c, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s [%s]: %v", key, v, err)
	}
	return i, nil
}
