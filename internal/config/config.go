package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string

	CameraDevice       string
	CameraName         string
	ModelPath          string
	ConfigPath         string
	LabelsPath         string
	DetectionThreshold float64
	DetectionInterval  time.Duration // Przerwa między klatkami
	JPEGQuality        int

	ClassesFile      string
	TargetClasses    map[string]string // etykieta -> id kategorii
	AlertDescription string
	MaxEpisodeImages int
	MinConfidence    float64

	AlertURL     string
	AlertTimeout time.Duration

	GeoIPDatabase string
	PublicIP      string
	PublicIPURL   string
	Latitude      *float64
	Longitude     *float64

	DatabasePath   string
	ImageDirectory string
	LogDirectory   string
	LogLevel       string
	MetricsEnabled bool
}

// Load reads an optional .env file, then the environment, then the target
// class file.
func Load() (*Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		Port:               getEnvAsInt("PORT", 8080),
		Password:           getEnv("PASSWORD", "alertcam"),
		CameraDevice:       getEnv("CAMERA_DEVICE", "0"),
		CameraName:         getEnv("CAMERA_NAME", "camera0"),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:         getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		LabelsPath:         getEnv("LABELS_PATH", ""),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		DetectionInterval:  getEnvAsDuration("DETECTION_INTERVAL_MS", time.Second),
		JPEGQuality:        getEnvAsInt("JPEG_QUALITY", 90),
		ClassesFile:        getEnv("CLASSES_FILE", filepath.Join(".", "classes.yaml")),
		AlertDescription:   getEnv("ALERT_DESCRIPTION", ""),
		MaxEpisodeImages:   getEnvAsInt("MAX_EPISODE_IMAGES", 50),
		MinConfidence:      getEnvAsFloat("MIN_CONFIDENCE", 0),
		AlertURL:           getEnv("ALERT_URL", "http://127.0.0.1:5000/api/add_detecciones"),
		AlertTimeout:       getEnvAsDuration("ALERT_TIMEOUT_MS", 10*time.Second),
		GeoIPDatabase:      getEnv("GEOIP_DB", ""),
		PublicIP:           getEnv("PUBLIC_IP", ""),
		PublicIPURL:        getEnv("PUBLIC_IP_URL", "https://api.ipify.org"),
		Latitude:           getEnvAsFloatPtr("LATITUDE"),
		Longitude:          getEnvAsFloatPtr("LONGITUDE"),
		DatabasePath:       getEnv("DB_PATH", filepath.Join(".", "data", "episodes.db")),
		ImageDirectory:     getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
	}

	classes, err := LoadClasses(cfg.ClassesFile)
	switch {
	case err == nil:
		cfg.TargetClasses = classes.Classes
		if cfg.AlertDescription == "" {
			cfg.AlertDescription = classes.Description
		}
	case errors.Is(err, os.ErrNotExist):
		cfg.TargetClasses = ParseClassList(getEnv("TARGET_CLASSES", "cell phone=1"))
	default:
		return nil, err
	}

	return cfg, nil
}

// Validate reports every setting that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if len(c.TargetClasses) == 0 {
		errs = append(errs, errors.New("no target classes configured"))
	}
	if c.DetectionInterval < 0 {
		errs = append(errs, errors.New("DETECTION_INTERVAL_MS must not be negative"))
	}
	if c.AlertTimeout <= 0 {
		errs = append(errs, errors.New("ALERT_TIMEOUT_MS must be positive"))
	}
	if c.MaxEpisodeImages < 0 {
		errs = append(errs, errors.New("MAX_EPISODE_IMAGES must not be negative"))
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("JPEG_QUALITY %d out of [0,100]", c.JPEGQuality))
	}
	if c.DetectionThreshold < 0 || c.DetectionThreshold > 1 {
		errs = append(errs, fmt.Errorf("DETECTION_THRESHOLD %v out of [0,1]", c.DetectionThreshold))
	}
	if u, err := url.Parse(c.AlertURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid ALERT_URL %q", c.AlertURL))
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		errs = append(errs, errors.New("LATITUDE and LONGITUDE must be set together"))
	}

	return errors.Join(errs...)
}

// ParseClassList parses "label=id,label=id". Entries without "=" are skipped.
func ParseClassList(s string) map[string]string {
	classes := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		label, id, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		label, id = strings.TrimSpace(label), strings.TrimSpace(id)
		if label == "" || id == "" {
			continue
		}
		classes[label] = id
	}
	return classes
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsFloatPtr(key string) *float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return &floatValue
		}
	}
	return nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a millisecond count.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
