package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/lake-levels/internal/common"
	"github.com/i474232898/lake-levels/internal/levels"
	"github.com/i474232898/lake-levels/internal/levels/usgs"
	"github.com/i474232898/lake-levels/internal/store"
)

type AppConfig struct {
	Port      string `validate:"required,numeric"`
	LogFormat string `validate:"oneof=text json"`

	// Snapshot cache.
	CacheDir    string        `validate:"required"`
	CacheMaxAge time.Duration `validate:"gt=0"`
	StaleAfter  time.Duration `validate:"gte=0"`

	// Upstream access. RequestTimeout bounds one candidate; ResourceTimeout is the client-wide ceiling.
	InstantaneousURL string        `validate:"required,url"`
	DailyURL         string        `validate:"required,url"`
	RequestTimeout   time.Duration `validate:"gt=0"`
	ResourceTimeout  time.Duration `validate:"gtefield=RequestTimeout"`
	MaxResponseBytes int64         `validate:"gt=0"`

	// Accepted physical range for a reading, inclusive.
	LevelMin float64
	LevelMax float64 `validate:"gtfield=LevelMin"`

	// Cache warm-up.
	FetchInterval time.Duration `validate:"gt=0"`
	WarmLakes     []string
	WarmPeriods   []levels.Period `validate:"dive,oneof=P7D P30D P365D"`

	// Optional; enables geocoding of catalog entries without coordinates.
	GeocoderAPIKey string
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "text")

	cfg.CacheDir = getenvDefault("CACHE_DIR", defaultCacheDir())

	var err error
	if cfg.CacheMaxAge, err = getenvDuration("CACHE_MAX_AGE", store.DefaultMaxAge); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = getenvDuration("STALE_AFTER", time.Hour); err != nil {
		return nil, err
	}

	cfg.InstantaneousURL = getenvDefault("INSTANTANEOUS_URL", usgs.InstantaneousURL)
	cfg.DailyURL = getenvDefault("DAILY_URL", usgs.DailyURL)
	if cfg.RequestTimeout, err = getenvDuration("HTTP_REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ResourceTimeout, err = getenvDuration("HTTP_RESOURCE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.MaxResponseBytes = int64(getenvInt("MAX_RESPONSE_BYTES", int(usgs.DefaultMaxBodyBytes)))

	if cfg.LevelMin, err = getenvFloat("LEVEL_MIN", usgs.DefaultMinValue); err != nil {
		return nil, err
	}
	if cfg.LevelMax, err = getenvFloat("LEVEL_MAX", usgs.DefaultMaxValue); err != nil {
		return nil, err
	}

	// Warm-up interval: default 60 minutes.
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	cfg.WarmLakes = common.SplitList(os.Getenv("WARM_LAKES"))
	for _, raw := range common.SplitList(getenvDefault("WARM_PERIODS", string(levels.PeriodWeek))) {
		p, err := levels.ParsePeriod(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid WARM_PERIODS: %w", err)
		}
		cfg.WarmPeriods = append(cfg.WarmPeriods, p)
	}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// defaultCacheDir keeps snapshots apart from any other persisted app data.
func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "lake-levels", "snapshots")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
