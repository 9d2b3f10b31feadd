// Package envcfg parses environment variable lists into struct fields tagged
// with `env:"NAME=default"`, the same convention pkg/atlas/config.go uses for
// the Atlas server's much larger Config, generalized here for reuse by the
// recsync-client binary.
package envcfg

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Unmarshal unmarshals the environment variable assignments in es (each of
// the form "KEY=VALUE", as returned by os.Environ or envparse.Parse) into the
// struct pointed to by dst, using defaults from each field's `env` tag for
// any variable not present in es.
//
// If prefixes is non-empty, only keys in es starting with one of them are
// considered at all (everything else, e.g. PATH or HOME when es is
// os.Environ(), is silently ignored) — the same filter
// pkg/atlas/config.go's UnmarshalEnv applies for "ATLAS_"/"NOTIFY_SOCKET=".
// Any considered key left over after matching known fields is an error.
//
// Supported field types: string, bool, int, int8, int16, int32, int64,
// time.Duration, and zerolog.Level; any other type (including the unsigned
// integers) is an error. A field without an `env` tag is ignored.
func Unmarshal(dst any, es []string, prefixes ...string) error {
	em := map[string]string{}
	for _, e := range es {
		if len(prefixes) > 0 && !hasAnyPrefix(e, prefixes) {
			continue
		}
		if k, v, ok := strings.Cut(e, "="); ok {
			em[k] = v
		}
	}

	cv := reflect.ValueOf(dst).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		tag, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}
		key, val, _ := strings.Cut(tag, "=")

		if v, exists := em[key]; exists {
			val = v
			delete(em, key)
		}

		cvf := cv.FieldByName(ctf.Name)
		if err := setField(cvf, val); err != nil {
			return fmt.Errorf("env %s (%s): %w", key, cvf.Type(), err)
		}
	}

	for key := range em {
		return fmt.Errorf("unknown environment variable %q", key)
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func setField(cvf reflect.Value, val string) error {
	switch cvf.Interface().(type) {
	case string:
		cvf.SetString(val)
	case time.Duration:
		if val == "" {
			cvf.Set(reflect.ValueOf(time.Duration(0)))
			return nil
		}
		v, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parse %q: %w", val, err)
		}
		cvf.Set(reflect.ValueOf(v))
	case zerolog.Level:
		if val == "" {
			cvf.Set(reflect.ValueOf(zerolog.InfoLevel))
			return nil
		}
		v, err := zerolog.ParseLevel(val)
		if err != nil {
			return fmt.Errorf("parse %q: %w", val, err)
		}
		cvf.Set(reflect.ValueOf(v))
	case bool:
		if val == "" {
			cvf.SetBool(false)
			return nil
		}
		v, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parse %q: %w", val, err)
		}
		cvf.SetBool(v)
	case int, int8, int16, int32, int64:
		if val == "" {
			cvf.SetInt(0)
			return nil
		}
		v, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %q: %w", val, err)
		}
		cvf.SetInt(v)
	default:
		return fmt.Errorf("unhandled field type %s", cvf.Type())
	}
	return nil
}
