// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for gpusetup.
//
// CLI: Comprehensive help and examples for all commands
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   path                Show configuration file path
//   init [--force]      Write the default configuration
//   get <key>           Print one value
//   set <key> <value>   Set one value and save
//
// Examples:
//   gpusetup config                              Show current config
//   gpusetup config show --json                  Config in JSON format
//   gpusetup config set probe.timeout_secs 30
//   gpusetup config set install.python /opt/venv/bin/python
//   gpusetup config set install.requirement_files a.txt,b.txt
//   gpusetup config get index.cuda
//
// "show" includes environment overrides. "set" edits the file only, so
// GPUSETUP_* variables are never written back.

package cli

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/jeranaias/gpusetup/internal/config"
)

// ConfigPathData is the JSON payload of "config path".
type ConfigPathData struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// ConfigValueData is the JSON payload of "config get" and "config set".
type ConfigValueData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// HandleConfig handles the "config" command with subcommands.
func HandleConfig(env *Env, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(env, args)
	case "path":
		return handleConfigPath(env, args)
	case "init":
		return handleConfigInit(env, args)
	case "get":
		return handleConfigGet(env, args)
	case "set":
		return handleConfigSet(env, args)
	default:
		return NewValidationError("config subcommand", args.Subcommand, "must be one of show, path, init, get, set")
	}
}

func handleConfigShow(env *Env, args Args) error {
	cfg := env.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if args.JSON {
		return NewJSONResponse("config", cfg).Write(env.Out, env.Color)
	}

	data, err := config.Encode(cfg)
	if err != nil {
		return NewCommandError("config", "show", "could not encode configuration", err)
	}
	if path, err := env.configPath(); err == nil {
		fmt.Fprintln(env.Out, RenderConditional(DimStyle, "# Config file: "+path))
	}
	fmt.Fprint(env.Out, string(data))
	return nil
}

func handleConfigPath(env *Env, args Args) error {
	path, err := env.configPath()
	if err != nil {
		return NewCommandError("config", "path", "could not resolve config path", err)
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if args.JSON {
		return NewJSONResponse("config", ConfigPathData{Path: path, Exists: exists}).Write(env.Out, env.Color)
	}
	fmt.Fprintln(env.Out, path)
	if !exists {
		fmt.Fprintln(env.Err, RenderConditional(DimStyle, "(file does not exist yet; run: gpusetup config init)"))
	}
	return nil
}

func handleConfigInit(env *Env, args Args) error {
	path, err := env.configPath()
	if err != nil {
		return NewCommandError("config", "init", "could not resolve config path", err)
	}
	if _, err := os.Stat(path); err == nil && !args.Force {
		return NewCommandError("config", "init", "config file already exists at "+path+" (use --force to overwrite)", nil)
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "could not write config", err)
	}

	if args.JSON {
		return NewJSONResponse("config", ConfigPathData{Path: path, Exists: true}).Write(env.Out, env.Color)
	}
	fmt.Fprintf(env.Out, "%s Wrote default configuration to %s\n", RenderStatus("ok"), path)
	return nil
}

func handleConfigGet(env *Env, args Args) error {
	cfg := env.Config
	if cfg == nil {
		cfg = config.Default()
	}
	value, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return configKeyError(args.ConfigKey, err)
	}

	if args.JSON {
		return NewJSONResponse("config", ConfigValueData{Key: args.ConfigKey, Value: value}).Write(env.Out, env.Color)
	}
	fmt.Fprintln(env.Out, formatConfigValue(value))
	return nil
}

func handleConfigSet(env *Env, args Args) error {
	path, err := env.configPath()
	if err != nil {
		return NewCommandError("config", "set", "could not resolve config path", err)
	}

	// Start from the file alone so environment overrides are not persisted.
	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return NewCommandError("config", "set", "could not read existing config", err)
		}
	}

	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return configKeyError(args.ConfigKey, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("config", "set", "could not write config", err)
	}

	value, _ := cfg.Get(args.ConfigKey)
	if args.JSON {
		return NewJSONResponse("config", ConfigValueData{Key: args.ConfigKey, Value: value}).Write(env.Out, env.Color)
	}
	fmt.Fprintf(env.Out, "%s %s = %s\n", RenderStatus("ok"), args.ConfigKey, formatConfigValue(value))
	return nil
}

func configKeyError(key string, err error) error {
	return &ValidationError{
		Field:   "config key",
		Value:   key,
		Reason:  err.Error(),
		Example: "one of: " + strings.Join(config.GetAllKeys(), ", "),
	}
}

// formatConfigValue prints lists comma separated, the same form "set" accepts.
func formatConfigValue(value interface{}) string {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice {
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(value)
}
