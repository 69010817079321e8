package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses key with time.ParseDuration when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// not an error.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables on c.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("APIPLACAS_TOKEN"); ok {
		c.RegistryToken = value
	}
	if value, ok := EnvString("PRICER_REGISTRY_URL"); ok {
		c.RegistryBaseURL = value
	}
	if value, ok := EnvString("PRICER_FETCHER"); ok {
		c.Fetcher = strings.ToLower(value)
	}
	if value, ok, err := EnvDuration("PRICER_FETCH_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.FetchTimeout = value
	}
	if value, ok, err := EnvInt("PRICER_MAX_SAMPLES"); err != nil {
		return err
	} else if ok {
		c.MaxSamplesPerSource = value
	}
	if value, ok := EnvString("PRICER_CACHE"); ok {
		c.CacheBackend = strings.ToLower(value)
	}
	if value, ok, err := EnvDuration("PRICER_CACHE_TTL"); err != nil {
		return err
	} else if ok {
		c.CacheTTL = value
	}
	if value, ok := EnvString("REDIS_ADDR"); ok {
		c.RedisAddr = value
	}
	if value, ok := EnvString("REDIS_PASSWORD"); ok {
		c.RedisPassword = value
	}
	if value, ok, err := EnvInt("REDIS_DB"); err != nil {
		return err
	} else if ok {
		c.RedisDB = value
	}
	if value, ok, err := EnvInt("PORT"); err != nil {
		return err
	} else if ok {
		c.ListenAddr = fmt.Sprintf(":%d", value)
	}
	return nil
}

// LoadFile overlays the YAML file at path on c. Keys absent from the file keep
// their current values; a sources list replaces the defaults entirely.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
