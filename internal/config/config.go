// Copyright 2025 Worunie Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "teambot.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath       string   `yaml:"databasePath"                                            split_words:"true"`
	BindAddr           string   `yaml:"bindAddr"                                                split_words:"true"`
	SlackPort          uint     `yaml:"slackPort"          envconfig:"port"`
	SlackSigningSecret string   `yaml:"slackSigningSecret" envconfig:"SLACK_SIGNING_SECRET"`
	AdminPort          uint     `yaml:"adminPort"                                               split_words:"true"`
	AdminToken         string   `yaml:"adminToken"         envconfig:"TEAMBOT_ADMIN_TOKEN"`
	AdminUsers         []string `yaml:"adminUsers"                                              split_words:"true"`
	MetricsPort        uint     `yaml:"metricsPort"                                             split_words:"true"`
	MaxFiveMemberTeams int      `yaml:"maxFiveMemberTeams"                                      split_words:"true"`
	MaxFourMemberTeams int      `yaml:"maxFourMemberTeams"                                      split_words:"true"`
	TeamSize           int      `yaml:"teamSize"                                                split_words:"true"`
	FourTierThreshold  int      `yaml:"fourTierThreshold"                                       split_words:"true"`
	Topics             []string `yaml:"topics"`
	MaxTeamsPerTopic   int      `yaml:"maxTeamsPerTopic"                                        split_words:"true"`
	SelectionHour      int      `yaml:"selectionHour"                                           split_words:"true"`
	SelectionMinute    int      `yaml:"selectionMinute"                                         split_words:"true"`
	Timezone           string   `yaml:"timezone"`
	Tracing            bool     `yaml:"tracing"`
	TracingStdout      bool     `yaml:"tracingStdout"                                           split_words:"true"`
	ShutdownTimeout    string   `yaml:"shutdownTimeout"                                         split_words:"true"`
}

var globalConfig = &Config{
	DatabasePath:       ".teambot",
	BindAddr:           "0.0.0.0",
	SlackPort:          3000,
	AdminPort:          3001,
	MetricsPort:        12798,
	MaxFiveMemberTeams: 9,
	MaxFourMemberTeams: 3,
	TeamSize:           5,
	FourTierThreshold:  4,
	Topics:             []string{"WORK", "RUN"},
	MaxTeamsPerTopic:   6,
	SelectionHour:      15,
	SelectionMinute:    30,
	Timezone:           "Asia/Seoul",
	ShutdownTimeout:    DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.teambot/teambot.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".teambot", "teambot.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/teambot/teambot.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/teambot/teambot.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Load config values from environment variables
	// We use "dummy" as the app name here to (mostly) prevent picking up
	// values from generic env vars
	err := envconfig.Process("dummy", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	return globalConfig, nil
}

// GetConfig returns the global config instance
func GetConfig() *Config {
	return globalConfig
}
