package logquery

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params is the raw, transport-neutral query input. Values may be strings,
// integers, or slices of either; list values may also be given as one
// comma-separated string.
type Params map[string]interface{}

// ParamsFromValues converts URL query values. A trailing "[]" on a key is
// dropped, so both loggers=a,b and loggers[]=a&loggers[]=b are accepted.
func ParamsFromValues(v url.Values) Params {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	merged := make(map[string][]string)
	for _, key := range keys {
		name := strings.TrimSuffix(key, "[]")
		merged[name] = append(merged[name], v[key]...)
	}

	p := Params{}
	for name, vals := range merged {
		if len(vals) == 1 {
			p[name] = vals[0]
		} else {
			p[name] = vals
		}
	}
	return p
}

func (p Params) has(name string) bool {
	v, ok := p[name]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// intParam parses a non-negative integer parameter.
func (p Params) intParam(name string) (int64, bool, error) {
	if !p.has(name) {
		return 0, false, nil
	}
	n, err := toInt(p[name])
	if err != nil {
		return 0, true, invalidParam(name, "%v", err)
	}
	return n, true, nil
}

func toInt(v interface{}) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("must be at most %d, got %d", int64(math.MaxInt64), x)
		}
		n = int64(x)
	case float64:
		if x != math.Trunc(x) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, fmt.Errorf("must be an integer, got %v", x)
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", x.String())
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", x)
		}
		n = i
	case []string:
		if len(x) != 1 {
			return 0, fmt.Errorf("must be a single integer, got %d values", len(x))
		}
		return toInt(x[0])
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative, got %d", n)
	}
	return n, nil
}

// stringParam returns a single trimmed string parameter.
func (p Params) stringParam(name string) (string, bool, error) {
	if !p.has(name) {
		return "", false, nil
	}
	switch x := p[name].(type) {
	case string:
		return strings.TrimSpace(x), true, nil
	case []string:
		if len(x) != 1 {
			return "", true, invalidParam(name, "must be a single value, got %d", len(x))
		}
		return strings.TrimSpace(x[0]), true, nil
	case fmt.Stringer:
		return x.String(), true, nil
	case int, int64, float64, json.Number:
		return fmt.Sprint(x), true, nil
	default:
		return "", true, invalidParam(name, "must be a string, got %T", x)
	}
}

// listParam returns a de-duplicated, order-preserving list parameter. Every
// element, including each element of a native list, may itself be a
// comma-separated string.
func (p Params) listParam(name string) ([]string, bool, error) {
	if !p.has(name) {
		return nil, false, nil
	}

	var raw []string
	switch x := p[name].(type) {
	case string:
		raw = []string{x}
	case []string:
		raw = x
	case []interface{}:
		for _, item := range x {
			raw = append(raw, fmt.Sprint(item))
		}
	case []int:
		for _, item := range x {
			raw = append(raw, strconv.Itoa(item))
		}
	case []int64:
		for _, item := range x {
			raw = append(raw, strconv.FormatInt(item, 10))
		}
	case int, int64, float64, json.Number:
		raw = []string{fmt.Sprint(x)}
	default:
		return nil, true, invalidParam(name, "must be a list, got %T", x)
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out, true, nil
}

// intListParam parses a list parameter whose elements are non-negative integers.
func (p Params) intListParam(name string) ([]int64, bool, error) {
	items, ok, err := p.listParam(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		n, err := toInt(item)
		if err != nil {
			return nil, true, invalidParam(name, "%v", err)
		}
		out = append(out, n)
	}
	return out, true, nil
}
