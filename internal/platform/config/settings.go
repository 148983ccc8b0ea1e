package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved runtime configuration of the server.
type Settings struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	DataDir    string `yaml:"data_dir"`
	UploadsDir string `yaml:"uploads_dir"`
	StreamsDir string `yaml:"streams_dir"`

	// StoreBackend is one of "file", "memory" or "postgres".
	StoreBackend string   `yaml:"store_backend"`
	DatabaseURL  string   `yaml:"database_url"`
	RedisURL     string   `yaml:"redis_url"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	FFmpegPath       string        `yaml:"ffmpeg_path"`
	FFprobePath      string        `yaml:"ffprobe_path"`
	SegmentDuration  int           `yaml:"segment_duration"`
	TranscodeTimeout time.Duration `yaml:"transcode_timeout"`
	TranscodeWorkers int           `yaml:"transcode_workers"`

	Timezone       string `yaml:"timezone"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Defaults returns the settings used when neither a file nor the environment
// provides a value.
func Defaults() Settings {
	return Settings{
		Port:             "8080",
		LogLevel:         "info",
		LogFormat:        "json",
		DataDir:          "db",
		UploadsDir:       "uploads",
		StreamsDir:       "streams",
		StoreBackend:     "file",
		KafkaTopic:       "broadcast.events",
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		SegmentDuration:  10,
		TranscodeTimeout: 30 * time.Minute,
		TranscodeWorkers: 4,
		Timezone:         "Local",
		MaxUploadBytes:   500 << 20,
	}
}

// Resolve builds Settings from defaults, then the optional YAML file at path,
// then environment variables. Later sources win.
func Resolve(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		if err := s.mergeFile(path); err != nil {
			return s, err
		}
	}
	s.mergeEnv()
	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	// Unmarshal onto the defaults so absent keys keep their value.
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (s *Settings) mergeEnv() {
	s.Port = GetEnv("PORT", s.Port)
	s.LogLevel = GetEnv("LOG_LEVEL", s.LogLevel)
	s.LogFormat = GetEnv("LOG_FORMAT", s.LogFormat)
	s.DataDir = GetEnv("DATA_DIR", s.DataDir)
	s.UploadsDir = GetEnv("UPLOADS_DIR", s.UploadsDir)
	s.StreamsDir = GetEnv("STREAMS_DIR", s.StreamsDir)
	s.StoreBackend = GetEnv("STORE_BACKEND", s.StoreBackend)
	s.DatabaseURL = GetEnv("DATABASE_URL", s.DatabaseURL)
	s.RedisURL = GetEnv("REDIS_URL", s.RedisURL)
	s.KafkaBrokers = GetEnvList("KAFKA_BROKERS", s.KafkaBrokers)
	s.KafkaTopic = GetEnv("KAFKA_TOPIC", s.KafkaTopic)
	s.FFmpegPath = GetEnv("FFMPEG_PATH", s.FFmpegPath)
	s.FFprobePath = GetEnv("FFPROBE_PATH", s.FFprobePath)
	s.SegmentDuration = GetEnvInt("SEGMENT_DURATION", s.SegmentDuration)
	s.TranscodeTimeout = GetEnvDuration("TRANSCODE_TIMEOUT", s.TranscodeTimeout)
	s.TranscodeWorkers = GetEnvInt("TRANSCODE_WORKERS", s.TranscodeWorkers)
	s.Timezone = GetEnv("TIMEZONE", s.Timezone)
	s.MaxUploadBytes = GetEnvInt64("MAX_UPLOAD_BYTES", s.MaxUploadBytes)

	// A database URL alone is enough to select the postgres backend.
	if s.DatabaseURL != "" && os.Getenv("STORE_BACKEND") == "" {
		s.StoreBackend = "postgres"
	}
}

func (s *Settings) validate() error {
	switch s.StoreBackend {
	case "file", "memory":
	case "postgres":
		if s.DatabaseURL == "" {
			return fmt.Errorf("store_backend postgres requires database_url")
		}
	default:
		return fmt.Errorf("unknown store_backend %q", s.StoreBackend)
	}
	if s.SegmentDuration <= 0 {
		return fmt.Errorf("segment_duration must be positive, got %d", s.SegmentDuration)
	}
	if s.TranscodeWorkers <= 0 {
		return fmt.Errorf("transcode_workers must be positive, got %d", s.TranscodeWorkers)
	}
	if s.TranscodeTimeout <= 0 {
		return fmt.Errorf("transcode_timeout must be positive, got %s", s.TranscodeTimeout)
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone into a *time.Location.
func (s Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// EnsureDirs creates the directories the server writes into.
func (s Settings) EnsureDirs() error {
	for _, dir := range []string{s.DataDir, s.UploadsDir, s.StreamsDir} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", dir, err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", abs, err)
		}
	}
	return nil
}
