package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// settings is one layer of raw values (a config file or the SECKILL_*
// environment). Keys are matched case-insensitively.
type settings map[string]interface{}

func newSettings(raw interface{}) (settings, error) {
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, err
	}
	out := make(settings, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

func (s settings) lookup(keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := s[key]; ok {
			return v, true
		}
		if v, ok := s[strings.ToLower(key)]; ok {
			return v, true
		}
	}
	return nil, false
}

// Each setter leaves dst alone when none of keys is present and reports
// conversion failures under the first key.

func (s settings) setString(dst *string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	v, err := cast.ToStringE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = strings.TrimSpace(v)
	return nil
}

func (s settings) setInt(dst *int, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	v, err := cast.ToIntE(blankAsNil(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s settings) setBool(dst *bool, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	v, err := cast.ToBoolE(blankAsNil(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s settings) setFloat(dst *float64, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	v, err := cast.ToFloat64E(blankAsNil(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s settings) setDuration(dst *time.Duration, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	v, err := parseTimeout(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

// setList accepts a YAML/JSON list or a single string, which becomes a
// one-element list (markers may contain spaces).
func (s settings) setList(dst *[]string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case nil:
		*dst = nil
		return nil
	case string:
		*dst = []string{v}
		return nil
	}
	v, err := cast.ToStringSliceE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s settings) headers(keys ...string) (map[string]string, error) {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil, nil
	}
	m, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keys[0], err)
	}
	for k := range m {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%s: header key cannot be empty", keys[0])
		}
	}
	return m, nil
}

func (s settings) section(keys ...string) (settings, bool, error) {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil, false, nil
	}
	sub, err := newSettings(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", keys[0], err)
	}
	return sub, true, nil
}

func blankAsNil(v interface{}) interface{} {
	if str, ok := v.(string); ok {
		if str = strings.TrimSpace(str); str == "" {
			return nil
		}
		return str
	}
	return v
}

// parseTimeout reads a duration string ("750ms", "2s") or a bare number of
// seconds, given either as a number or as a numeric string.
func parseTimeout(v interface{}) (time.Duration, error) {
	switch t := blankAsNil(v).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return t, nil
	case string:
		if secs, err := strconv.ParseFloat(t, 64); err == nil {
			return seconds(secs), nil
		}
		return time.ParseDuration(t)
	default:
		secs, err := cast.ToFloat64E(t)
		if err != nil {
			return 0, err
		}
		return seconds(secs), nil
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
