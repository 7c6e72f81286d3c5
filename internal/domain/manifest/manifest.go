package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Header keys
const (
	SymbolicName     = "Bundle-SymbolicName"
	Name             = "Bundle-Name"
	Vendor           = "Bundle-Vendor"
	Copyright        = "Bundle-Copyright"
	Activator        = "Bundle-Activator"
	ActivatorLibrary = "Bundle-ActivatorLibrary"
	ActivationPolicy = "Bundle-ActivationPolicy"
	RequireBundle    = "Require-Bundle"
	SystemBundle     = "Bundle-SystemBundle"
)

// Policy controls whether a bundle is started with the platform.
type Policy string

const (
	PolicyEager Policy = "eager"
	PolicyLazy  Policy = "lazy"
)

var (
	ErrInvalidManifest   = errors.New("invalid manifest")
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
)

// Manifest is the parsed, read-only description of a bundle.
type Manifest struct {
	headers map[string]string // original key -> value
	keys    map[string]string // lower-case key -> original key

	symbolicName     string
	name             string
	vendor           string
	copyright        string
	activator        string
	activatorLibrary string
	policy           Policy
	requires         []string
	system           bool
}

// Parse decodes a manifest file. The format is picked from the extension of
// file: .yaml/.yml, .toml or .json.
func Parse(file string, data []byte) (*Manifest, error) {
	var raw map[string]any

	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, file, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, file, err)
		}
	case ".json":
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, file, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	m, err := FromHeaders(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return m, nil
}

// FromHeaders builds a manifest from decoded header values. Scalars are
// converted to strings and lists are joined with commas.
func FromHeaders(raw map[string]any) (*Manifest, error) {
	m := &Manifest{
		headers: make(map[string]string, len(raw)),
		keys:    make(map[string]string, len(raw)),
		policy:  PolicyEager,
	}

	for key, value := range raw {
		str, err := headerString(value)
		if err != nil {
			return nil, fmt.Errorf("%w: header %s: %v", ErrInvalidManifest, key, err)
		}
		lower := strings.ToLower(key)
		if prev, dup := m.keys[lower]; dup {
			return nil, fmt.Errorf("%w: header %s duplicates %s", ErrInvalidManifest, key, prev)
		}
		m.headers[key] = str
		m.keys[lower] = key
	}

	m.symbolicName = m.Header(SymbolicName)
	if m.symbolicName == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidManifest, SymbolicName)
	}
	if strings.ContainsAny(m.symbolicName, " \t\r\n,;") {
		return nil, fmt.Errorf("%w: malformed %s %q", ErrInvalidManifest, SymbolicName, m.symbolicName)
	}

	m.name = m.Header(Name)
	m.vendor = m.Header(Vendor)
	m.copyright = m.Header(Copyright)
	m.activator = m.Header(Activator)
	m.activatorLibrary = m.Header(ActivatorLibrary)
	if m.activatorLibrary == "" {
		m.activatorLibrary = m.symbolicName
	}

	if policy := m.Header(ActivationPolicy); policy != "" {
		switch Policy(strings.ToLower(policy)) {
		case PolicyEager:
			m.policy = PolicyEager
		case PolicyLazy:
			m.policy = PolicyLazy
		default:
			return nil, fmt.Errorf("%w: unknown %s %q", ErrInvalidManifest, ActivationPolicy, policy)
		}
	}

	if flag := m.Header(SystemBundle); flag != "" {
		system, err := strconv.ParseBool(flag)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q is not a boolean", ErrInvalidManifest, SystemBundle, flag)
		}
		m.system = system
	}

	m.requires = parseRequires(m.Header(RequireBundle))
	for _, dep := range m.requires {
		if dep == m.symbolicName {
			return nil, fmt.Errorf("%w: %s requires itself", ErrInvalidManifest, m.symbolicName)
		}
	}

	return m, nil
}

// parseRequires splits a Require-Bundle value into symbolic names. Attributes
// and directives after ';' are ignored, duplicates keep their first position.
func parseRequires(value string) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, clause := range strings.Split(value, ",") {
		name, _, _ := strings.Cut(clause, ";")
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		deps = append(deps, name)
	}
	return deps
}

func headerString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, err := headerString(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case []string:
		return strings.Join(v, ","), nil
	case map[string]any:
		return "", fmt.Errorf("nested tables are not allowed")
	default:
		return fmt.Sprint(v), nil
	}
}

// Header returns the value of key, matched case-insensitively.
func (m *Manifest) Header(key string) string {
	orig, ok := m.keys[strings.ToLower(key)]
	if !ok {
		return ""
	}
	return m.headers[orig]
}

// Headers returns a copy of all headers.
func (m *Manifest) Headers() map[string]string {
	out := make(map[string]string, len(m.headers))
	for k, v := range m.headers {
		out[k] = v
	}
	return out
}

// HeaderKeys returns the header keys in sorted order.
func (m *Manifest) HeaderKeys() []string {
	keys := make([]string, 0, len(m.headers))
	for k := range m.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SymbolicName returns Bundle-SymbolicName, the unique bundle name.
func (m *Manifest) SymbolicName() string { return m.symbolicName }

// Name returns Bundle-Name.
func (m *Manifest) Name() string { return m.name }

// Vendor returns Bundle-Vendor.
func (m *Manifest) Vendor() string { return m.vendor }

// Copyright returns Bundle-Copyright.
func (m *Manifest) Copyright() string { return m.copyright }

// Activator returns the class part of Bundle-Activator.
func (m *Manifest) Activator() string { return m.activator }

// ActivatorLibrary returns the library holding the activator class. It
// defaults to the symbolic name.
func (m *Manifest) ActivatorLibrary() string { return m.activatorLibrary }

// ActivationPolicy returns Bundle-ActivationPolicy, eager unless set to lazy.
func (m *Manifest) ActivationPolicy() Policy { return m.policy }

// IsSystemBundle reports whether Bundle-SystemBundle is true.
func (m *Manifest) IsSystemBundle() bool { return m.system }

// RequiredBundles returns the declared dependencies in manifest order.
func (m *Manifest) RequiredBundles() []string {
	return append([]string(nil), m.requires...)
}
