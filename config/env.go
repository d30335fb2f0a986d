package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment variable read by [OverrideFromEnv]
const EnvPrefix = "WEBTREE_"

// LookupFunc has the signature of os.LookupEnv
type LookupFunc func(key string) (string, bool)

// LoadEnvOverride reads the given dotenv files (missing ones are skipped) and
// builds an override from WEBTREE_* variables. Process environment variables
// take precedence over dotenv values. The process environment is not modified.
func LoadEnvOverride(files ...string) (*ConfigOverride, error) {
	dotenv := make(map[string]string)
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := dotenv[k]; !ok {
				dotenv[k] = v
			}
		}
	}

	return OverrideFromEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
}

// OverrideFromEnv builds a ConfigOverride from WEBTREE_* variables found via lookup
func OverrideFromEnv(lookup LookupFunc) (*ConfigOverride, error) {
	var o ConfigOverride
	var err error

	get := func(name string) (string, bool) {
		return lookup(EnvPrefix + name)
	}
	str := func(name string) *string {
		if v, ok := get(name); ok {
			return &v
		}
		return nil
	}
	num := func(name string) *int {
		v, ok := get(name)
		if !ok || err != nil {
			return nil
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, perr)
			return nil
		}
		return &n
	}

	o.LogLvl = num("VERBOSE")
	o.Addr = str("ADDR")
	o.SeedPath = str("SEED")
	o.SessionTTLSec = num("SESSION_TTL_SEC")
	o.ReapIntervalSec = num("REAP_INTERVAL_SEC")
	o.MaxSessions = num("MAX_SESSIONS")
	o.DefaultFileName = str("DEFAULT_FILE_NAME")
	o.DefaultFolderName = str("DEFAULT_FOLDER_NAME")
	if v, ok := get("ALLOW_ORIGINS"); ok {
		origins := make([]string, 0)
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				origins = append(origins, s)
			}
		}
		o.AllowOrigins = &origins
	}
	if v, ok := get("METRICS"); ok {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return nil, fmt.Errorf("invalid %sMETRICS: %w", EnvPrefix, perr)
		}
		o.MetricsEnabled = &b
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
