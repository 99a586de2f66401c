package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Event log backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Config is the full configuration document.
type Config struct {
	Log       LogConfig       `yaml:"log" json:"log"`
	EventLog  EventLogConfig  `yaml:"eventlog" json:"eventlog"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog" json:"catalog"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// EventLogConfig selects where events are journaled. Path is ignored by
// the memory backend.
type EventLogConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
	Sync    bool   `yaml:"sync" json:"sync"`
}

// SchedulerConfig bounds effect execution. Zero means unbounded.
type SchedulerConfig struct {
	MaxConcurrent int      `yaml:"max_concurrent" json:"max_concurrent"`
	EffectTimeout Duration `yaml:"effect_timeout" json:"effect_timeout"`
}

// CacheConfig controls the materialized snapshot cache. A zero TTL
// disables caching.
type CacheConfig struct {
	TTL Duration `yaml:"ttl" json:"ttl"`
}

// CatalogConfig tunes the catalogue program.
type CatalogConfig struct {
	Debounce Duration `yaml:"debounce" json:"debounce"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the configuration used for omitted fields.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		EventLog: EventLogConfig{Backend: BackendSQLite, Path: "stateloop.db"},
		Scheduler: SchedulerConfig{
			MaxConcurrent: 16,
			EffectTimeout: Duration(10 * time.Second),
		},
		Cache:   CacheConfig{TTL: Duration(5 * time.Second)},
		Catalog: CatalogConfig{Debounce: Duration(300 * time.Millisecond)},
	}
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"300ms\"", node.Line)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON renders d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// SchemaError is a configuration document rejected by the schema.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Message)
}

// Load reads the configuration at path. An empty path yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the schema and decodes it over Default.
func Parse(data []byte) (Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := checkSchema(doc); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if len(doc) > 0 {
		if err := decodeStrict(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// checkSchema unifies doc with #Config. Definitions are closed, so any key
// the schema does not name is an error.
func checkSchema(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaError(err)
	}
	return nil
}

func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	path := ""
	for i, sel := range first.Path() {
		if i == 0 && sel == "#Config" {
			continue
		}
		if path != "" {
			path += "."
		}
		path += sel
	}
	return &SchemaError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// Validate checks constraints the schema cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.EventLog.Backend != BackendMemory && c.EventLog.Path == "" {
		errs = append(errs, fmt.Errorf("eventlog.path is required for the %s backend", c.EventLog.Backend))
	}
	if c.Scheduler.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_concurrent must not be negative"))
	}
	durations := []struct {
		name string
		d    Duration
	}{
		{"scheduler.effect_timeout", c.Scheduler.EffectTimeout},
		{"cache.ttl", c.Cache.TTL},
		{"catalog.debounce", c.Catalog.Debounce},
	}
	for _, f := range durations {
		if f.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", f.name))
		}
	}
	return errors.Join(errs...)
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
