package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c360/eventscope/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

// durationKeys are the fields that accept duration strings such as "33ms".
var durationKeys = map[string]bool{
	"tick_interval":  true,
	"frame_interval": true,
	"batch_interval": true,
	"orbit_period":   true,
	"reset_every":    true,
	"reconnect_wait": true,
	"ping_interval":  true,
	"write_timeout":  true,
	"read_timeout":   true,
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	schema     *gojsonschema.Schema
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "EVENTSCOPE",
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables the final Config.Validate call.
// Schema checks on each layer always run.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file over the defaults.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer and environment overrides, then validates.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, err
		}
		if err := l.validateSchema(path, raw); err != nil {
			return nil, err
		}
		parseDurations(raw)
		merged = deepMergeMaps(merged, raw)
	}

	cfg, err := fromMap(merged)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "Loader", "Load",
			fmt.Sprintf("decode merged configuration: %v", err))
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw reads one layer as a generic map. YAML is chosen by extension.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "loadRaw", fmt.Sprintf("read %s", path))
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		if err = validateJSONDepth(data); err == nil {
			err = json.Unmarshal(data, &raw)
		}
	}
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "Loader", "loadRaw",
			fmt.Sprintf("parse %s: %v", path, err))
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// validateSchema checks one layer against the embedded JSON schema.
func (l *Loader) validateSchema(path string, raw map[string]any) error {
	if l.schema == nil {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
		if err != nil {
			return errors.WrapFatal(err, "Loader", "validateSchema", "compile schema")
		}
		l.schema = schema
	}

	result, err := l.schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.WrapInvalid(errors.ErrParsingFailed, "Loader", "validateSchema",
			fmt.Sprintf("validate %s: %v", path, err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Loader", "validateSchema",
			fmt.Sprintf("%s: %s", path, strings.Join(msgs, "; ")))
	}
	return nil
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(data map[string]any) {
	for k, v := range data {
		switch val := v.(type) {
		case map[string]any:
			parseDurations(val)
		case string:
			if !durationKeys[k] {
				continue
			}
			if d, err := time.ParseDuration(val); err == nil {
				data[k] = d.Nanoseconds()
			}
		}
	}
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) error {
		key := l.envPrefix + "_" + name
		val := os.Getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", key)
		}
		if val != "" {
			*dst = val
		}
		return nil
	}
	num := func(name string, dst *int) error {
		var s string
		if err := str(name, &s); err != nil || s == "" {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Loader", "applyEnvOverrides",
				fmt.Sprintf("%s_%s: %v", l.envPrefix, name, err))
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		var s string
		if err := str(name, &s); err != nil || s == "" {
			return err
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Loader", "applyEnvOverrides",
				fmt.Sprintf("%s_%s: %v", l.envPrefix, name, err))
		}
		*dst = b
		return nil
	}

	return errors.Join(
		str("INPUT_SOURCE", &cfg.Inputs.Source),
		str("NATS_URL", &cfg.Inputs.NATS.URL),
		str("NATS_SUBJECT", &cfg.Inputs.NATS.Subject),
		str("NATS_USERNAME", &cfg.Inputs.NATS.Username),
		str("NATS_PASSWORD", &cfg.Inputs.NATS.Password),
		str("NATS_TOKEN", &cfg.Inputs.NATS.Token),
		num("WEBSOCKET_PORT", &cfg.Outputs.WebSocket.Port),
		num("METRICS_PORT", &cfg.Metrics.Port),
		flag("PLAYBACK_STRICT", &cfg.Playback.Strict),
	)
}
