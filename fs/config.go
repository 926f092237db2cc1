// config.go - Konfigurations-Interface fuer Modell-Metadaten
//
// Dieses Modul enthaelt:
// - Config: Typisierter Key/Value-Zugriff auf Modell-Metadaten
// - JSONConfig: JSON-basierte Implementierung (config.json im Modell-Verzeichnis)
//
// Verschachtelte JSON-Objekte werden mit Punkt-Notation adressiert
// ("mae.embed_dim"). Fehlende Keys liefern den optionalen Default.
package fs

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config definiert typisierten Zugriff auf Modell-Metadaten
type Config interface {
	Architecture() string

	String(key string, defaultValue ...string) string
	Uint(key string, defaultValue ...uint32) uint32
	Float(key string, defaultValue ...float32) float32
	Bool(key string, defaultValue ...bool) bool

	Strings(key string, defaultValue ...[]string) []string
	Ints(key string, defaultValue ...[]int32) []int32
	Floats(key string, defaultValue ...[]float32) []float32
}

// JSONConfig implementiert Config ueber eine flache Key/Value-Map
type JSONConfig struct {
	kv map[string]any
}

// LoadConfig laedt eine config.json und flacht verschachtelte Objekte ab
func LoadConfig(path string) (*JSONConfig, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config lesen fehlgeschlagen: %w", err)
	}

	return ParseConfig(bts)
}

// ParseConfig parst JSON-Bytes in eine JSONConfig
func ParseConfig(bts []byte) (*JSONConfig, error) {
	var raw map[string]any
	if err := json.Unmarshal(bts, &raw); err != nil {
		return nil, fmt.Errorf("config parsen fehlgeschlagen: %w", err)
	}

	c := &JSONConfig{kv: make(map[string]any)}
	flatten("", raw, c.kv)
	return c, nil
}

// NewConfig erstellt eine JSONConfig direkt aus einer Key/Value-Map.
// Verschachtelte Maps werden wie bei ParseConfig abgeflacht.
func NewConfig(kv map[string]any) *JSONConfig {
	c := &JSONConfig{kv: make(map[string]any)}
	flatten("", kv, c.kv)
	return c
}

// flatten flacht verschachtelte Maps mit Punkt-Notation ab
func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		if m, ok := v.(map[string]any); ok {
			flatten(key, m, out)
		} else {
			out[key] = v
		}
	}
}

// Architecture gibt den Architektur-Namen zurueck
func (c *JSONConfig) Architecture() string {
	return c.String("architecture", "priorformer")
}

func (c *JSONConfig) String(key string, defaultValue ...string) string {
	if v, ok := c.kv[key].(string); ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *JSONConfig) Uint(key string, defaultValue ...uint32) uint32 {
	if v, ok := c.kv[key].(float64); ok {
		return uint32(v)
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

func (c *JSONConfig) Float(key string, defaultValue ...float32) float32 {
	if v, ok := c.kv[key].(float64); ok {
		return float32(v)
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

func (c *JSONConfig) Bool(key string, defaultValue ...bool) bool {
	if v, ok := c.kv[key].(bool); ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return false
}

func (c *JSONConfig) Strings(key string, defaultValue ...[]string) []string {
	if v, ok := c.kv[key].([]any); ok {
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return nil
}

func (c *JSONConfig) Ints(key string, defaultValue ...[]int32) []int32 {
	if v, ok := c.kv[key].([]any); ok {
		out := make([]int32, 0, len(v))
		for _, e := range v {
			if f, ok := e.(float64); ok {
				out = append(out, int32(f))
			}
		}
		return out
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return nil
}

func (c *JSONConfig) Floats(key string, defaultValue ...[]float32) []float32 {
	if v, ok := c.kv[key].([]any); ok {
		out := make([]float32, 0, len(v))
		for _, e := range v {
			if f, ok := e.(float64); ok {
				out = append(out, float32(f))
			}
		}
		return out
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return nil
}
