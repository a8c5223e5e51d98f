// Package msgcat holds the human-readable texts sent to clients.
package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

const defaultFile = "messages.en.yaml"

// Catalog maps dotted keys (room.full, game.unknown) to text/template sources.
// Missing template keys are errors.
type Catalog struct {
	mu    sync.RWMutex
	data  map[string]string
	cache map[string]*template.Template
}

// New loads the embedded messages, then any *.yaml overrides found in overrideDir.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{data: make(map[string]string), cache: make(map[string]*template.Template)}
	raw, err := fs.ReadFile(defaultFiles, defaultFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	if err := c.apply(raw); err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Default returns the embedded catalog. It panics only if the embedded file is broken.
func Default() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read message dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	seen := make(map[string]string) // key -> file
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := flatten(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range flat {
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
			}
			seen[k] = name
		}
		c.merge(flat)
	}
	return nil
}

func (c *Catalog) apply(b []byte) error {
	flat, err := flatten(b)
	if err != nil {
		return err
	}
	c.merge(flat)
	return nil
}

func (c *Catalog) merge(flat map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range flat {
		c.data[k] = v
		delete(c.cache, k)
	}
}

func flatten(b []byte) (map[string]string, error) {
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if err := flattenInto(m, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(src any, prefix string, out map[string]string) error {
	switch v := src.(type) {
	case map[string]any:
		for k, vv := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flattenInto(vv, key, out); err != nil {
				return err
			}
		}
		return nil
	case string:
		if prefix == "" {
			return errors.New("string value without key")
		}
		out[prefix] = v
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
}

// Render executes the template stored under key.
func (c *Catalog) Render(key string, data any) (string, error) {
	key = strings.TrimSpace(key)
	c.mu.RLock()
	tpl, cached := c.cache[key]
	src, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || strings.TrimSpace(src) == "" {
		return "", fmt.Errorf("template not found: %s", key)
	}
	if !cached {
		parsed, err := template.New(key).Option("missingkey=error").Parse(src)
		if err != nil {
			return "", fmt.Errorf("parse template %s: %w", key, err)
		}
		c.mu.Lock()
		c.cache[key] = parsed
		c.mu.Unlock()
		tpl = parsed
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}
	return b.String(), nil
}

// Text renders key, falling back to fallback when rendering fails.
func (c *Catalog) Text(key string, data any, fallback string) string {
	if c == nil {
		return fallback
	}
	s, err := c.Render(key, data)
	if err != nil {
		obslog.L().Warn("msgcat_render_error", zap.String("key", key), zap.Error(err))
		return fallback
	}
	return s
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
