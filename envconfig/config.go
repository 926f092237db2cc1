// config.go - Environment-Konfiguration fuer Priorformer
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (PRIORFORMER_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (PRIORFORMER_ORIGINS)
// - Models: Gibt Model-Verzeichnis zurueck (PRIORFORMER_MODELS)
// - NumThreads: Gibt Worker-Anzahl fuer das CPU-Backend zurueck (PRIORFORMER_NUM_THREADS)
// - LogLevel: Gibt Log-Level zurueck (PRIORFORMER_DEBUG)
// - Var: Liest eine Environment-Variable mit Quote-Bereinigung
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via PRIORFORMER_HOST
// Default: http://127.0.0.1:11788
func Host() *url.URL {
	defaultPort := "11788"

	s := strings.TrimSpace(Var("PRIORFORMER_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}
	// ":8080" spaltet sich in leeren Host und Port
	if host == "" {
		host = "127.0.0.1"
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt die erlaubten CORS-Origins zurueck
// Konfigurierbar via PRIORFORMER_ORIGINS (kommagetrennt)
func AllowedOrigins() (origins []string) {
	if s := Var("PRIORFORMER_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	// Standard-Origins fuer localhost
	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	origins = append(origins,
		"app://*",
		"file://*",
	)

	return origins
}

// Models gibt das Model-Verzeichnis zurueck
// Konfigurierbar via PRIORFORMER_MODELS
// Default: ~/.priorformer/models
func Models() string {
	if s := Var("PRIORFORMER_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".priorformer", "models")
}

// NumThreads gibt die Worker-Anzahl fuer das CPU-Backend zurueck
// Konfigurierbar via PRIORFORMER_NUM_THREADS
// Default: Anzahl der logischen CPUs
func NumThreads() int {
	if s := Var("PRIORFORMER_NUM_THREADS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
		slog.Warn("invalid thread count, using default", "value", s)
	}

	return runtime.NumCPU()
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via PRIORFORMER_DEBUG
// "1"/"true" aktiviert Debug, groessere Zahlen aktivieren Trace
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("PRIORFORMER_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
