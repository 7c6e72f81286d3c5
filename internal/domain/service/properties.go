package service

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Registry-owned and well-known property keys
const (
	PropServiceID   = "service.id"
	PropObjectClass = "objectclass"
	PropRanking     = "service.ranking"
)

// Properties are the caller-supplied properties of a service.
type Properties map[string]any

// Dictionary is a read-only property lookup with case-insensitive keys.
type Dictionary interface {
	Get(key string) (any, bool)
}

// properties stores values by lower-case key and remembers the spelling
// of each key.
type properties struct {
	values map[string]any
	keys   map[string]string
}

func newProperties(src Properties) properties {
	p := properties{
		values: make(map[string]any, len(src)+2),
		keys:   make(map[string]string, len(src)+2),
	}
	for k, v := range src {
		p.set(k, v)
	}
	return p
}

func (p properties) set(key string, value any) {
	lower := strings.ToLower(key)
	p.values[lower] = value
	p.keys[lower] = key
}

func (p properties) Get(key string) (any, bool) {
	v, ok := p.values[strings.ToLower(key)]
	return v, ok
}

func (p properties) sortedKeys() []string {
	keys := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p properties) export() Properties {
	out := make(Properties, len(p.values))
	for lower, v := range p.values {
		if s, ok := v.([]string); ok {
			v = append([]string(nil), s...)
		}
		out[p.keys[lower]] = v
	}
	return out
}

// Get looks key up case-insensitively.
func (p Properties) Get(key string) (any, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// rankingOf normalizes a service.ranking value to an int. Values that are not
// integral numbers rank as zero.
func rankingOf(v any) (int, bool) {
	switch r := v.(type) {
	case int:
		return r, true
	case int8:
		return int(r), true
	case int16:
		return int(r), true
	case int32:
		return int(r), true
	case int64:
		return clampInt(r), true
	case uint8:
		return int(r), true
	case uint16:
		return int(r), true
	case uint32:
		return clampInt(int64(r)), true
	case uint64:
		if r > math.MaxInt64 {
			return math.MaxInt, true
		}
		return clampInt(int64(r)), true
	case uint:
		return rankingOf(uint64(r))
	case float32:
		return rankingOf(float64(r))
	case float64:
		if r != math.Trunc(r) || math.IsInf(r, 0) || math.IsNaN(r) {
			return 0, false
		}
		if r >= math.MaxInt64 || r < math.MinInt64 {
			return 0, false
		}
		return clampInt(int64(r)), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func clampInt(v int64) int {
	if v > math.MaxInt {
		return math.MaxInt
	}
	if v < math.MinInt {
		return math.MinInt
	}
	return int(v)
}
