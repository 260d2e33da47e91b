package server

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/fsutil"
)

// PropertiesHeader is the comment written at the top of every managed server.properties.
const PropertiesHeader = "# Managed by Lodestone-server-manager"

// Properties is an ordered set of typed server.properties entries. Values are
// bool, int or string, inferred from the file contents.
type Properties struct {
	keys   []string
	values map[string]any
}

// NewProperties returns an empty set.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

// DefaultProperties returns the properties written for a freshly created server.
func DefaultProperties(motd string) *Properties {
	p := NewProperties()
	p.Set("motd", motd)
	p.Set("server-port", 25565)
	p.Set("max-players", 20)
	p.Set("online-mode", true)
	p.Set("difficulty", "easy")
	p.Set("gamemode", "survival")
	p.Set("pvp", true)
	p.Set("view-distance", 10)
	p.Set("enable-rcon", false)
	p.Set("rcon.port", 25575)
	p.Set("rcon.password", "")
	return p
}

// ParseProperties reads key=value lines. Blank lines, comments and lines
// without '=' are skipped. A repeated key keeps its first position and its last value.
func ParseProperties(r io.Reader) (*Properties, error) {
	p := NewProperties()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		p.Set(strings.TrimSpace(key), parseValue(strings.TrimSpace(value)))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read properties")
	}
	return p, nil
}

// LoadProperties reads a properties file. A missing file yields an empty set.
func LoadProperties(path string) (*Properties, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewProperties(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open properties")
	}
	defer func() { _ = f.Close() }()
	return ParseProperties(f)
}

// Save writes the properties to path through a temporary file.
func (p *Properties) Save(path string) error {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// WriteTo writes the header followed by one key=value line per entry.
func (p *Properties) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	c, _ := fmt.Fprintln(bw, PropertiesHeader)
	n += int64(c)
	for _, k := range p.keys {
		c, _ = fmt.Fprintf(bw, "%s=%s\n", k, formatValue(p.values[k]))
		n += int64(c)
	}
	return n, errors.Wrap(bw.Flush(), "write properties")
}

// Keys returns the keys in file order.
func (p *Properties) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len returns the number of entries.
func (p *Properties) Len() int { return len(p.keys) }

// Get returns the typed value for key.
func (p *Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Raw returns the value as it would be written to disk, or "" if absent.
func (p *Properties) Raw(key string) string {
	v, ok := p.values[key]
	if !ok {
		return ""
	}
	return formatValue(v)
}

// Bool returns a bool entry. ok is false if the key is absent or not a bool.
func (p *Properties) Bool(key string) (v, ok bool) {
	v, ok = p.values[key].(bool)
	return v, ok
}

// Int returns an int entry. ok is false if the key is absent or not an int.
func (p *Properties) Int(key string) (int, bool) {
	v, ok := p.values[key].(int)
	return v, ok
}

// Set inserts or replaces an entry without type checks.
func (p *Properties) Set(key string, value any) {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// SetString parses raw against the type of the existing entry and stores it.
// Unknown keys fail with ErrUnknownProperty and badly typed values with ErrInvalidValue.
func (p *Properties) SetString(key, raw string) error {
	current, ok := p.values[key]
	if !ok {
		return errors.Wrapf(ErrUnknownProperty, "%q", key)
	}
	raw = strings.TrimSpace(raw)
	switch current.(type) {
	case bool:
		switch strings.ToLower(raw) {
		case "true":
			p.values[key] = true
		case "false":
			p.values[key] = false
		default:
			return errors.Wrapf(ErrInvalidValue, "%s: expected boolean", key)
		}
	case int:
		n, ok := parseInt(raw)
		if !ok {
			return errors.Wrapf(ErrInvalidValue, "%s: expected integer", key)
		}
		p.values[key] = n
	default:
		p.values[key] = raw
	}
	return nil
}

// Clone returns an independent copy.
func (p *Properties) Clone() *Properties {
	c := NewProperties()
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

func parseValue(s string) any {
	switch {
	case strings.EqualFold(s, "true"):
		return true
	case strings.EqualFold(s, "false"):
		return false
	}
	if n, ok := parseInt(s); ok {
		return n
	}
	return s
}

// parseInt accepts an optional leading minus and decimal digits only.
func parseInt(s string) (int, bool) {
	if strings.HasPrefix(s, "+") {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
