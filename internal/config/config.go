// Package config defines the sampling run configuration and how it is loaded.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over those defaults.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// InputPath is the register CSV to sample from.
	InputPath string `koanf:"input_path"`

	// OutputDir receives every export of a run.
	OutputDir string `koanf:"output_dir" validate:"required"`

	// BirthDateWindow and ParentDateWindow are the matching windows in days.
	BirthDateWindow  int64 `koanf:"birth_date_window" validate:"gt=0"`
	ParentDateWindow int64 `koanf:"parent_date_window" validate:"gt=0"`

	// ControlsPerCase is how many controls each case should get.
	ControlsPerCase int `koanf:"controls_per_case" validate:"gt=0"`

	// BatchSize is the number of cases one sampling batch handles.
	BatchSize int `koanf:"batch_size" validate:"gt=0"`

	// Workers bounds how many batches run in parallel.
	Workers int `koanf:"workers" validate:"gt=0"`

	// Seed fixes the random draws; 0 picks a time based seed.
	Seed uint64 `koanf:"seed"`

	ParquetExport bool `koanf:"parquet_export"`
	ExcelReport   bool `koanf:"excel_report"`

	// PostgresDSN enables the PostgreSQL export when set.
	PostgresDSN   string `koanf:"postgres_dsn"`
	PostgresTable string `koanf:"postgres_table" validate:"required"`

	// MetricsTextfile, when set, receives a Prometheus textfile dump after the run.
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		OutputDir:        "output",
		BirthDateWindow:  30,
		ParentDateWindow: 365,
		ControlsPerCase:  4,
		BatchSize:        1024,
		Workers:          runtime.NumCPU(),
		PostgresTable:    "case_control_pairs",
	}
}
