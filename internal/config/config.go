// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// UpmixManager - 立体声升混批处理工具

package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
	Upmix  UpmixConfig  `yaml:"upmix"`
	Store  StoreConfig  `yaml:"store"`
	Watch  WatchConfig  `yaml:"watch"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path        string   `yaml:"path"`
	MaxLogLines int      `yaml:"max_log_lines"`
	InputAllow  []string `yaml:"input_allow"`
	InputBlock  []string `yaml:"input_block"`
}

// UpmixConfig 默认升混参数
type UpmixConfig struct {
	Format  string `yaml:"format"`
	Quality string `yaml:"quality"`
	Output  string `yaml:"output"`
}

// StoreConfig 持久化配置，Path 为空时不持久化
type StoreConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig 监听目录，Dir 为空时不启用
type WatchConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		FFmpeg: FFmpegConfig{Path: "ffmpeg", MaxLogLines: 200},
		Upmix:  UpmixConfig{Format: "5.1", Quality: "standard"},
		Store:  StoreConfig{Path: "upmix.db"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 填充空值
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = ":8080"
	}
	if cfg.FFmpeg.Path == "" {
		cfg.FFmpeg.Path = "ffmpeg"
	}
	if cfg.FFmpeg.MaxLogLines <= 0 {
		cfg.FFmpeg.MaxLogLines = 200
	}
	if cfg.Upmix.Format == "" {
		cfg.Upmix.Format = "5.1"
	}
	if cfg.Upmix.Quality == "" {
		cfg.Upmix.Quality = "standard"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}
