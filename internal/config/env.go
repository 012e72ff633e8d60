package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// env is a namespaced view over key/value configuration (e.g. "LDAP_", "HTTP_").
// Parse problems are collected instead of aborting, so Load can report every
// bad key at once.
type env struct {
	prefix string
	lookup func(string) (string, bool)
	errs   *[]error
}

// Prefix returns a child view with an additional prefix
func (e env) Prefix(p string) env {
	return env{prefix: e.prefix + p, lookup: e.lookup, errs: e.errs}
}

func (e env) key(k string) string { return e.prefix + k }

func (e env) raw(key string) string {
	v, _ := e.lookup(e.key(key))
	return strings.TrimSpace(v)
}

func (e env) fail(key string, format string, args ...any) {
	*e.errs = append(*e.errs, fmt.Errorf("%s: "+format, append([]any{e.key(key)}, args...)...))
}

// Get returns the trimmed value or def if empty
func (e env) Get(key, def string) string {
	if v := e.raw(key); v != "" {
		return v
	}
	return def
}

// Secret returns the value untrimmed; passwords may legitimately carry spaces
func (e env) Secret(key string) string {
	v, _ := e.lookup(e.key(key))
	if v == "" {
		e.fail(key, "is required")
	}
	return v
}

// Require returns the trimmed value and records an error if it is empty
func (e env) Require(key string) string {
	v := e.raw(key)
	if v == "" {
		e.fail(key, "is required")
	}
	return v
}

// Bool parses a bool-like value ("1|true|yes|0|false|no")
func (e env) Bool(key string, def bool) bool {
	switch v := strings.ToLower(e.raw(key)); v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		e.fail(key, "invalid bool %q", v)
		return def
	}
}

// Duration parses a Go duration (e.g. 250ms, 5s) that must be positive
func (e env) Duration(key string, def time.Duration) time.Duration {
	v := e.raw(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, "invalid duration %q (e.g. 250ms, 5s)", v)
		return def
	}
	if d <= 0 {
		e.fail(key, "duration must be positive, got %s", d)
		return def
	}
	return d
}

// Int parses a decimal integer
func (e env) Int(key string, def int) int {
	v := e.raw(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, "invalid integer %q", v)
		return def
	}
	return n
}

// List splits a comma separated value, dropping empty parts
func (e env) List(key string, def []string) []string {
	var out []string
	for _, part := range strings.Split(e.raw(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// OneOf returns the lower-cased value if it is one of allowed
func (e env) OneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(e.raw(key))
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	e.fail(key, "invalid value %q, expected one of %s", v, strings.Join(allowed, "|"))
	return def
}
