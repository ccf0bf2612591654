package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process settings read from the environment. The watched
// entities and channel credentials live in the file loaded by Load.
type Config struct {
	Addr       string // API bind address; empty means "use the config file, then the default"
	LogDir     string // logs directory
	LogLevel   string // debug | info | warn | error
	LogConsole bool   // mirror logs to stdout
	ConfigPath string // entities + channels file (YAML or JSON)

	ProbeTimeout  time.Duration // per-probe HTTP timeout
	SendTimeout   time.Duration // per-contact notification timeout
	StatusCeiling time.Duration // how long the on-demand status query waits for probes
	TLSCheckEvery time.Duration // how often https entities get a certificate check

	StatusKeyHashes []string // bcrypt hashes of accepted status API keys; empty disables auth
	StatusRPM       int      // per-client requests/minute on the status API; 0 disables
	StatusBurst     int
	AllowedOrigins  []string // CORS origins for the status API; empty allows all
	TrustedProxies  []string // IPs or CIDRs whose X-Forwarded-For is believed

	TransitionLogSize int // transitions kept in memory for /api/transitions
}

const DefaultAddr = "127.0.0.1:8080"

func FromEnv() Config {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	return Config{
		Addr:       strings.TrimSpace(os.Getenv("API_ADDR")),
		LogDir:     logDir,
		LogLevel:   logLevel,
		LogConsole: envBool("LOG_CONSOLE", false),
		ConfigPath: configPath,

		ProbeTimeout:  envMillis("PROBE_TIMEOUT_MS", 10*time.Second),
		SendTimeout:   envMillis("SEND_TIMEOUT_MS", 10*time.Second),
		StatusCeiling: envMillis("STATUS_CEILING_MS", 30*time.Second),
		TLSCheckEvery: envMillis("TLS_CHECK_INTERVAL_MS", time.Hour),

		StatusKeyHashes: envList("STATUS_API_KEY_HASHES"),
		StatusRPM:       envInt("STATUS_RPM", 120),
		StatusBurst:     envInt("STATUS_BURST", 30),
		AllowedOrigins:  envList("ALLOWED_ORIGINS"),
		TrustedProxies:  envList("TRUSTED_PROXIES"),

		TransitionLogSize: envInt("TRANSITION_LOG_SIZE", 1024),
	}
}

// ListenAddr picks the bind address: environment first, then the config
// file, then DefaultAddr.
func (c Config) ListenAddr(f *File) string {
	if c.Addr != "" {
		return c.Addr
	}
	if f != nil && f.Addr != "" {
		return f.Addr
	}
	return DefaultAddr
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
