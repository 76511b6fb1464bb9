package main

import (
	"fmt"
	"strings"

	"questlock/internal/repository"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	TelegramAuth TelegramAuthConfig `yaml:"telegramAuth"`
	Bridge       BridgeConfig       `yaml:"bridge"`
	Enforcement  EnforcementConfig  `yaml:"enforcement"`

	LogLevel    string `yaml:"logLevel"`
	LogEncoding string `yaml:"logEncoding"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string `yaml:"telegramBotToken"`
	NotifyChatID     int64  `yaml:"notifyChatId"`
	Debug            bool   `yaml:"debug"`
}

type BridgeConfig struct {
	AgentURL        string `yaml:"agentUrl"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	LookbackSeconds int    `yaml:"lookbackSeconds"`
}

type EnforcementConfig struct {
	PollIntervalMillis   int      `yaml:"pollIntervalMillis"`
	MonitorMode          string   `yaml:"monitorMode"`
	LockedApps           []string `yaml:"lockedApps"`
	ExemptApps           []string `yaml:"exemptApps"`
	SweepIntervalSeconds int      `yaml:"sweepIntervalSeconds"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
