// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engineconfig reads the engine's YAML configuration file.
package engineconfig

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config is the full engine configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Events  Events  `yaml:"events"`
	Uploads Uploads `yaml:"uploads"`
}

type Server struct {
	ListenAddress   string `yaml:"listen_address" validate:"required,hostname_port"`
	ShutdownSeconds int    `yaml:"shutdown_seconds" validate:"gte=0"`
}

type Logging struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

type Events struct {
	BufferSize int `yaml:"buffer_size" validate:"gte=0"`
}

type Uploads struct {
	// StagingDir holds multipart CSV uploads until the batch commits.
	StagingDir string `yaml:"staging_dir"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
}

// DefaultConfig is what an absent or empty config file means.
func DefaultConfig() Config {
	return Config{
		Server:  Server{ListenAddress: "0.0.0.0:8095", ShutdownSeconds: 15},
		Logging: Logging{MaxSizeMB: 100, MaxBackups: 3},
		Events:  Events{BufferSize: 64},
		Uploads: Uploads{StagingDir: os.TempDir(), MaxSizeMB: 32},
	}
}

// UnmarshalAndValidate strictly decodes YAML over the defaults.
func UnmarshalAndValidate(input []byte) (Config, error) {
	config := DefaultConfig()
	if err := yaml.UnmarshalWithOptions(input, &config, yaml.Strict()); err != nil {
		return Config{}, fmt.Errorf("the engine config file is not valid YAML. detailed error: %s", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ReadConfigFile loads path, or the defaults when path is empty.
func ReadConfigFile(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
	}
	return UnmarshalAndValidate(data)
}

// Validate applies the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("engine config failed validation: %w", err)
	}
	return nil
}
