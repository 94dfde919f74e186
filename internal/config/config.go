// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/gpusetup/internal/install"
	"github.com/jeranaias/gpusetup/internal/logging"
	"github.com/jeranaias/gpusetup/internal/plan"
	"github.com/jeranaias/gpusetup/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete gpusetup configuration.
type Config struct {
	Probe   ProbeConfig   `toml:"probe" json:"probe"`
	Install InstallConfig `toml:"install" json:"install"`
	Index   plan.Indexes  `toml:"index" json:"index"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// ProbeConfig controls hardware probing.
type ProbeConfig struct {
	// TimeoutSecs bounds each external command.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// InspectTimeoutSecs bounds the python torch introspection. A cold
	// "import torch" with CUDA libraries is much slower than a vendor tool.
	InspectTimeoutSecs int `toml:"inspect_timeout_secs" json:"inspect_timeout_secs"`
	// ROCmPath is the ROCm install prefix. At its default value $ROCM_PATH
	// takes precedence; any other value wins over the environment.
	ROCmPath string `toml:"rocm_path" json:"rocm_path"`
}

// InstallConfig controls the pip installer.
type InstallConfig struct {
	Python           string   `toml:"python" json:"python"`
	ProjectRoot      string   `toml:"project_root" json:"project_root"`
	RequirementFiles []string `toml:"requirement_files" json:"requirement_files"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	files := make([]string, len(install.DefaultRequirementFiles))
	for i, f := range install.DefaultRequirementFiles {
		files[i] = filepath.ToSlash(f)
	}
	return &Config{
		Probe: ProbeConfig{
			TimeoutSecs:        10,
			InspectTimeoutSecs: int(install.DefaultInspectTimeout / time.Second),
			ROCmPath:           "/opt/rocm",
		},
		Install: InstallConfig{
			Python:           "",
			ProjectRoot:      ".",
			RequirementFiles: files,
		},
		Index: plan.DefaultIndexes(),
		Log: LogConfig{
			Level: string(logging.DefaultLevel),
		},
	}
}

// Timeout returns the probe timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSecs) * time.Second
}

// InspectTimeout returns the torch introspection timeout as a duration.
func (c *Config) InspectTimeout() time.Duration {
	return time.Duration(c.Probe.InspectTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the gpusetup configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".gpusetup"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogDir returns where the full-screen installer writes its log files.
func LogDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file at path, or the default location when path is
// empty. A missing file is not an error. Environment overrides are applied
// last, then the result is validated.
//
// On error the returned config is still usable: it holds the defaults plus
// whatever could be applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	var loadErr error

	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			loadErr = err
		}
		path = p
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				cfg = Default()
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Default(), errors.Join(loadErr, fmt.Errorf("invalid config: %w", err))
	}
	return cfg, loadErr
}

// LoadTOML decodes path over cfg. Keys the file does not mention keep their
// current values. Unknown keys are rejected so typos surface.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Probe.TimeoutSecs == 0 {
		c.Probe.TimeoutSecs = defaults.Probe.TimeoutSecs
	}
	if c.Probe.InspectTimeoutSecs == 0 {
		c.Probe.InspectTimeoutSecs = defaults.Probe.InspectTimeoutSecs
	}
	if c.Probe.ROCmPath == "" {
		c.Probe.ROCmPath = defaults.Probe.ROCmPath
	}
	if c.Install.ProjectRoot == "" {
		c.Install.ProjectRoot = defaults.Install.ProjectRoot
	}
	if c.Install.RequirementFiles == nil {
		c.Install.RequirementFiles = defaults.Install.RequirementFiles
	}
	// MPS installs from the default index, so an empty MPS entry is kept.
	if c.Index.CUDA == "" {
		c.Index.CUDA = defaults.Index.CUDA
	}
	if c.Index.ROCm == "" {
		c.Index.ROCm = defaults.Index.ROCm
	}
	if c.Index.CPU == "" {
		c.Index.CPU = defaults.Index.CPU
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const fileHeader = `# gpusetup configuration file
# Generated by gpusetup - edit with care
#
# Environment overrides: GPUSETUP_PYTHON, GPUSETUP_PROJECT_ROOT,
# GPUSETUP_TIMEOUT, GPUSETUP_LOG_LEVEL

`

// Encode renders cfg as TOML with the standard header.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes cfg to the default location.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// maxTimeoutSecs caps probe.timeout_secs; a hung driver tool should not
// stall detection for longer than this.
const maxTimeoutSecs = 600

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Probe.TimeoutSecs < 1 || c.Probe.TimeoutSecs > maxTimeoutSecs {
		errs = append(errs, ValidationError{
			Field:   "probe.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", maxTimeoutSecs, c.Probe.TimeoutSecs),
		})
	}

	if c.Probe.InspectTimeoutSecs < 1 || c.Probe.InspectTimeoutSecs > maxTimeoutSecs {
		errs = append(errs, ValidationError{
			Field:   "probe.inspect_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", maxTimeoutSecs, c.Probe.InspectTimeoutSecs),
		})
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error, off", c.Log.Level),
		})
	}

	for name, u := range map[string]string{"index.cuda": c.Index.CUDA, "index.rocm": c.Index.ROCm, "index.mps": c.Index.MPS, "index.cpu": c.Index.CPU} {
		if u != "" && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			errs = append(errs, ValidationError{Field: name, Message: fmt.Sprintf("'%s' is not an http(s) URL", u)})
		}
	}

	for i, f := range c.Install.RequirementFiles {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("install.requirement_files[%d]", i),
				Message: "empty path",
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - GPUSETUP_PYTHON: overrides install.python
//   - GPUSETUP_PROJECT_ROOT: overrides install.project_root
//   - GPUSETUP_TIMEOUT: overrides probe.timeout_secs (ignored unless numeric)
//   - GPUSETUP_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if python := getenv("GPUSETUP_PYTHON"); python != "" {
		c.Install.Python = python
	}
	if root := getenv("GPUSETUP_PROJECT_ROOT"); root != "" {
		c.Install.ProjectRoot = root
	}
	if timeout := getenv("GPUSETUP_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(timeout)); err == nil {
			c.Probe.TimeoutSecs = secs
		}
	}
	if level := getenv("GPUSETUP_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "probe.timeout_secs").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type; lists are comma separated.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by toml tag.
func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the field whose toml tag matches name. Dashes are
// accepted in place of underscores.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				if items == nil {
					items = []string{}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(prefix string, t reflect.Type)
	walk = func(prefix string, t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			tag := strings.Split(f.Tag.Get("toml"), ",")[0]
			if tag == "" || tag == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(prefix+tag+".", f.Type)
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk("", reflect.TypeOf(Config{}))
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Install.RequirementFiles != nil {
		clone.Install.RequirementFiles = append([]string(nil), c.Install.RequirementFiles...)
	}
	return &clone
}
