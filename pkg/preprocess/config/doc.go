/*
Package config loads and resolves preprocessing pipeline configuration.

# Overview

Config wraps the map[string]any a YAML or JSON decoder produces and
offers typed accessors that swallow missing keys and type mismatches by
returning a fallback. Callers read values without type assertions or
nil checks, and a sparse config file still resolves cleanly.

# Basic Usage

Create a Config from any map and extract values with fallbacks:

	cfg := config.New(map[string]any{
	    "poll_interval":  "10s",
	    "poll_attempts":  10,
	    "search_context": "DR16",
	})

	interval := cfg.Duration("poll_interval", 10*time.Second) // 10s
	attempts := cfg.Int("poll_attempts", 10)                  // 10
	context := cfg.String("search_context", "DR16")           // "DR16"
	missing := cfg.String("missing", "default")               // "default"

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Int accepts int, int64, and float64 values without a fractional part,
which covers both YAML (whole numbers decode as int) and JSON (every
number decodes as float64).

Every accessor returns the fallback if the key is missing, the value
cannot be converted, or the conversion would lose precision.

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("preprocess.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

# Pipeline Settings

ParseSettings resolves the pipeline's own keys into a Settings struct,
applying Defaults for anything the file leaves out:

	settings := config.ParseSettings(cfg)
	client := casjobs.NewClient(
	    casjobs.WithBaseURL(settings.CasJobsURL),
	    casjobs.WithLoginURL(settings.LoginURL),
	)

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
