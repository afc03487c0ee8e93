package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// GapFillMode controls whether missing time buckets are inserted into a
// time-series result.
type GapFillMode string

const (
	GapFillNone GapFillMode = "none"
	GapFillNull GapFillMode = "null"
	GapFillZero GapFillMode = "zero"
)

// Settings carries every tunable of the query engine. Components never read
// ambient state; a Settings value is passed in at construction.
type Settings struct {
	// DefaultTopN limits single-series bar charts. Grouped bar charts fetch
	// DefaultTopN*GroupedTopNFactor raw rows before the client-side cut down
	// to MaxSeriesCount series by total.
	DefaultTopN       int
	GroupedTopNFactor int
	MaxSeriesCount    int

	// MaxScatterPoints caps the uniform random sample of point-pair charts.
	MaxScatterPoints int

	// Histogram bin count, clamped to [MinHistogramBins, MaxHistogramBins].
	HistogramBins    int
	MinHistogramBins int
	MaxHistogramBins int

	// MaxChartPoints triggers stride downsampling when a series exceeds it.
	MaxChartPoints int

	// Scenario request limits.
	MaxScenarioOperations int
	MaxScenarioFilters    int

	GapFill GapFillMode
}

// Default returns the documented defaults.
func Default() Settings {
	return Settings{
		DefaultTopN:       20,
		GroupedTopNFactor: 5,
		MaxSeriesCount:    5,
		MaxScatterPoints:  2000,
		HistogramBins:     20,
		MinHistogramBins:  5,
		MaxHistogramBins:  50,
		MaxChartPoints:    500,

		MaxScenarioOperations: 3,
		MaxScenarioFilters:    3,

		GapFill: GapFillNull,
	}
}

// Normalize clamps out-of-range values back into their documented ranges and
// fills zero values with defaults.
func (s Settings) Normalize() Settings {
	d := Default()
	if s.DefaultTopN <= 0 {
		s.DefaultTopN = d.DefaultTopN
	}
	if s.GroupedTopNFactor <= 0 {
		s.GroupedTopNFactor = d.GroupedTopNFactor
	}
	if s.MaxSeriesCount <= 0 {
		s.MaxSeriesCount = d.MaxSeriesCount
	}
	if s.MaxScatterPoints <= 0 {
		s.MaxScatterPoints = d.MaxScatterPoints
	}
	if s.MinHistogramBins <= 0 {
		s.MinHistogramBins = d.MinHistogramBins
	}
	if s.MaxHistogramBins <= 0 {
		s.MaxHistogramBins = d.MaxHistogramBins
	}
	if s.HistogramBins <= 0 {
		s.HistogramBins = d.HistogramBins
	}
	if s.HistogramBins < s.MinHistogramBins {
		s.HistogramBins = s.MinHistogramBins
	}
	if s.HistogramBins > s.MaxHistogramBins {
		s.HistogramBins = s.MaxHistogramBins
	}
	if s.MaxChartPoints <= 0 {
		s.MaxChartPoints = d.MaxChartPoints
	}
	if s.MaxScenarioOperations <= 0 {
		s.MaxScenarioOperations = d.MaxScenarioOperations
	}
	if s.MaxScenarioFilters <= 0 {
		s.MaxScenarioFilters = d.MaxScenarioFilters
	}
	if s.GapFill == "" {
		s.GapFill = d.GapFill
	}
	return s
}

// Config is the host-level configuration loaded from the environment.
type Config struct {
	DatasetDir string
	OutputDir  string
}

var (
	config *Config
	once   sync.Once
)

// GetConfig returns the singleton host configuration. A .env file is loaded
// when present.
func GetConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("no .env file loaded: %v", err)
		}
		config = &Config{
			DatasetDir: envOr("DATASET_DIR", "datasets"),
			OutputDir:  envOr("OUTPUT_DIR", "out"),
		}
	})
	return config
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
