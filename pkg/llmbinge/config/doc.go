// Package config resolves llmbinge configuration.
//
// Configuration is layered. The embedded defaults.yaml is the base, a user
// file and environment variables may sit on top, and overrides saved through
// the storage backend are applied last:
//
//	base := config.Defaults()
//	file, _ := config.FromFile("llmbinge.yaml")
//	app, err := config.Resolve(base.Merge(file), storedOverrides)
//
// Config itself is a thin wrapper around a nested map with dotted-path
// accessors that fall back to a default on missing or mistyped values:
//
//	cfg.String("llm.model", "")
//	cfg.Duration("generation.debounce", 500*time.Millisecond)
//
// Decode turns a Config into a validated AppConfig. Invalid values are
// reported as *errors.ValidationError naming the dotted field path.
package config
