// config_test.go - Tests fuer die Environment-Konfiguration
package envconfig

import (
	"log/slog"
	"testing"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value string
		want  string
	}{
		"empty":          {"", "http://127.0.0.1:11788"},
		"only address":   {"1.2.3.4", "http://1.2.3.4:11788"},
		"only port":      {":8080", "http://127.0.0.1:8080"},
		"address + port": {"1.2.3.4:8080", "http://1.2.3.4:8080"},
		"scheme http":    {"http://1.2.3.4", "http://1.2.3.4:80"},
		"scheme https":   {"https://1.2.3.4", "https://1.2.3.4:443"},
		"quoted":         {"\"1.2.3.4:8080\"", "http://1.2.3.4:8080"},
		"bad port":       {"1.2.3.4:99999", "http://1.2.3.4:11788"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("PRIORFORMER_HOST", tt.value)
			if got := Host().String(); got != tt.want {
				t.Errorf("Host() = %q, erwartet %q", got, tt.want)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]struct {
		value string
		want  slog.Level
	}{
		"empty": {"", slog.LevelInfo},
		"true":  {"true", slog.LevelDebug},
		"1":     {"1", slog.LevelDebug},
		"2":     {"2", slog.LevelDebug - 4},
		"false": {"false", slog.LevelInfo},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("PRIORFORMER_DEBUG", tt.value)
			if got := LogLevel(); got != tt.want {
				t.Errorf("LogLevel() = %v, erwartet %v", got, tt.want)
			}
		})
	}
}

func TestNumThreads(t *testing.T) {
	t.Setenv("PRIORFORMER_NUM_THREADS", "3")
	if got := NumThreads(); got != 3 {
		t.Errorf("NumThreads() = %d, erwartet 3", got)
	}

	// Ungueltige Werte fallen auf den Default zurueck
	t.Setenv("PRIORFORMER_NUM_THREADS", "-1")
	if got := NumThreads(); got <= 0 {
		t.Errorf("NumThreads() = %d, erwartet > 0", got)
	}
}
