package config

import "time"

// Default endpoints for the SciServer deployment that hosts SDSS CasJobs.
const (
	DefaultCasJobsURL = "https://skyserver.sdss.org/casjobs/RestApi"
	DefaultLoginURL   = "https://apps.sciserver.org/login-portal"
)

// Settings holds the resolved preprocessing pipeline configuration.
type Settings struct {
	// CasJobsURL is the CasJobs REST API base URL.
	CasJobsURL string

	// LoginURL is the SciServer login portal base URL.
	LoginURL string

	// SearchContext is the CasJobs context queried for spectroscopic
	// objects, for example "DR16". Results always materialize in MyDB.
	SearchContext string

	// DataDir is where downloaded tables land.
	DataDir string

	// CheckpointDir is the base directory for checkpoint state.
	CheckpointDir string

	// MaxBatch caps the number of objects accepted per checkpoint save.
	MaxBatch int

	// PollInterval is the wait between export-readiness probes.
	PollInterval time.Duration

	// PollAttempts is the number of export-readiness probes before
	// giving up on a table download.
	PollAttempts int

	// RequestTimeout bounds individual HTTP requests.
	RequestTimeout time.Duration
}

// Defaults returns the standard pipeline settings.
func Defaults() Settings {
	return Settings{
		CasJobsURL:     DefaultCasJobsURL,
		LoginURL:       DefaultLoginURL,
		SearchContext:  "DR16",
		DataDir:        "data",
		CheckpointDir:  "checkpoints",
		MaxBatch:       1000,
		PollInterval:   10 * time.Second,
		PollAttempts:   10,
		RequestTimeout: 30 * time.Second,
	}
}

// ParseSettings extracts pipeline settings from a Config, falling back to
// Defaults for missing or malformed keys.
func ParseSettings(cfg Config) Settings {
	def := Defaults()
	return Settings{
		CasJobsURL:     cfg.String("casjobs_url", def.CasJobsURL),
		LoginURL:       cfg.String("login_url", def.LoginURL),
		SearchContext:  cfg.String("search_context", def.SearchContext),
		DataDir:        cfg.String("data_dir", def.DataDir),
		CheckpointDir:  cfg.String("checkpoint_dir", def.CheckpointDir),
		MaxBatch:       cfg.Int("max_batch", def.MaxBatch),
		PollInterval:   cfg.Duration("poll_interval", def.PollInterval),
		PollAttempts:   cfg.Int("poll_attempts", def.PollAttempts),
		RequestTimeout: cfg.Duration("request_timeout", def.RequestTimeout),
	}
}
