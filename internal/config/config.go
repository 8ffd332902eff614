package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Content  ContentConfig  `yaml:"content"`
	Editor   EditorConfig   `yaml:"editor"`
	Upload   UploadConfig   `yaml:"upload"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Newsroom"`
	Description string `yaml:"description" default:"Editorial desk for the newsroom"`
	Tagline     string `yaml:"tagline" default:"Write, embed, publish"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" default:"newsroom.db"`
	// Compression of stored content: "zstd", "gzip" or "none".
	Compression string `yaml:"compression" default:"zstd"`
}

type ContentConfig struct {
	// Source is where articles live: "db" or "fs".
	Source          string `yaml:"source" default:"db"`
	Dir             string `yaml:"dir" default:"articles"`
	ReloadInterval  int    `yaml:"reload_interval_seconds" default:"5"`
	ArticlesPerPage int    `yaml:"articles_per_page" default:"50"`
}

type EditorConfig struct {
	SyntaxTheme string `yaml:"syntax_theme" default:"gruvbox"`
	// Renderer is the preview dialect: "mmark" or "classic".
	Renderer string `yaml:"renderer" default:"mmark"`
	// Drafts is where autosaved drafts live: "memory" or "db".
	Drafts         string `yaml:"drafts" default:"memory"`
	AutosaveDrafts bool   `yaml:"autosave_drafts" default:"true"`
	MaxSessions    int    `yaml:"max_sessions" default:"256"`

	// Sessions untouched for this long are closed.
	SessionIdleMinutes int `yaml:"session_idle_minutes" default:"120"`
}

type UploadConfig struct {
	MaxWidth        int     `yaml:"max_width" default:"1920"`
	MaxHeight       int     `yaml:"max_height" default:"1080"`
	Quality         float64 `yaml:"quality" default:"0.85"`
	SoftMaxBytes    int64   `yaml:"soft_max_bytes" default:"1048576"`
	MaxUploadBytes  int64   `yaml:"max_upload_bytes" default:"20971520"`
	Prefix          string  `yaml:"prefix" default:"content"`
	Keywords        string  `yaml:"keywords" default:""`
	PreviewCapacity int     `yaml:"preview_capacity" default:"64"`
}

type StorageConfig struct {
	// Backend is one of "fs", "s3", "minio" or "memory".
	Backend       string `yaml:"backend" default:"fs"`
	Bucket        string `yaml:"bucket" default:"newsroom"`
	Endpoint      string `yaml:"endpoint" default:""`
	Region        string `yaml:"region" default:"auto"`
	AccessKey     string `yaml:"access_key" default:""`
	SecretKey     string `yaml:"secret_key" default:""`
	UseSSL        bool   `yaml:"use_ssl" default:"true"`
	PathStyle     bool   `yaml:"path_style" default:"false"`
	PublicBaseURL string `yaml:"public_base_url" default:"/uploads"`
	LocalDir      string `yaml:"local_dir" default:"uploads"`
}

// Environment variables that override secrets from the config file.
const (
	EnvStorageAccessKey = "STORAGE_ACCESS_KEY"
	EnvStorageSecretKey = "STORAGE_SECRET_KEY"
)

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		applyEnv(config)
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(config)
	AppConfig = config
	return nil
}

// LoadEnv reads a .env file into the process environment. A missing file is
// not an error.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		configLogger.Debug().Err(err).Msg("No .env file loaded")
	}
}

func applyEnv(config *Config) {
	if v := os.Getenv(EnvStorageAccessKey); v != "" {
		config.Storage.AccessKey = v
	}
	if v := os.Getenv(EnvStorageSecretKey); v != "" {
		config.Storage.SecretKey = v
	}
}

// Get returns the loaded configuration, or the defaults when none was loaded.
func Get() *Config {
	if AppConfig != nil {
		return AppConfig
	}
	config := &Config{}
	applyDefaults(config)
	return config
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
