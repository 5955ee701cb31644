package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read by Load when no files are given.
const DefaultEnvFile = ".env"

// Load reads the given dotenv files (DefaultEnvFile when none are passed),
// then parses the process environment into Settings. Values already present
// in the environment win over dotenv files. Load never fails: unreadable
// files and unparseable values are reported in Settings.Warnings and the
// affected options keep their defaults.
func Load(files ...string) *Settings {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}

	var warnings []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			warnings = append(warnings, fmt.Sprintf("dotenv %s: %v", f, err))
		}
	}

	s := FromEnvironment(environMap(os.Environ()))
	s.Warnings = append(warnings, s.Warnings...)
	return s
}

// Defaults returns Settings populated only from envDefault tags.
func Defaults() *Settings {
	return FromEnvironment(map[string]string{})
}

// FromEnvironment parses Settings from an explicit key/value environment.
// A value that fails to parse is dropped, so its option falls back to the
// default, and a warning naming the key is recorded.
func FromEnvironment(environ map[string]string) *Settings {
	s := &Settings{}
	if err := env.ParseWithOptions(s, env.Options{Environment: environ}); err == nil {
		return s
	}

	clean := make(map[string]string, len(environ))
	var warnings []string
	for _, key := range Keys() {
		v, ok := environ[key]
		if !ok {
			continue
		}
		probe := &Settings{}
		if err := env.ParseWithOptions(probe, env.Options{Environment: map[string]string{key: v}}); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: invalid value, using default", key))
			continue
		}
		clean[key] = v
	}

	s = &Settings{}
	if err := env.ParseWithOptions(s, env.Options{Environment: clean}); err != nil {
		// Only reachable if an envDefault itself is malformed.
		s = &Settings{}
		warnings = append(warnings, fmt.Sprintf("settings: %v", err))
	}
	s.Warnings = warnings
	return s
}

// Keys returns every environment variable name Settings reads, sorted.
func Keys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Settings{}), &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(t reflect.Type, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("env"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name != "" && name != "-" {
				*keys = append(*keys, name)
			}
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, keys)
		}
	}
}

func environMap(pairs []string) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}
