package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// firstEnv returns the first non-empty variable among keys; the last
// argument is the default.
func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func envBool(k string, d bool) bool {
	v, ok := parseBool(os.Getenv(k))
	if !ok {
		return d
	}
	return v
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func parseBool(v string) (bool, bool) {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true, true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false, true
	}
	return false, false
}

// parser reads typed variables and collects every malformed value instead
// of silently using the default.
type parser struct {
	errs []error
}

func (p *parser) int(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid int for %s: %q", k, v))
		return d
	}
	return n
}

func (p *parser) dur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid duration for %s: %q", k, v))
		return d
	}
	return dur
}

func (p *parser) bool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, ok := parseBool(v)
	if !ok {
		p.errs = append(p.errs, fmt.Errorf("invalid bool for %s: %q", k, v))
		return d
	}
	return b
}

func (p *parser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(p.errs...))
}
