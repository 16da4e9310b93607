package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AuditCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type TokenCfg struct {
	Driver string // "memory" or "redis"
	TTL    time.Duration
	Strict bool
}

type Config struct {
	Addr         string
	LogLevel     string
	DatabaseURL  string
	DBMaxConns   int
	RedisAddr    string
	ScratchDir   string
	QueryTimeout time.Duration
	HierCacheLen int
	Tables       Tables
	Spatial      SpatialFilter
	Token        TokenCfg
	Audit        AuditCfg
	FiresAPI     FiresAPICfg
}

type FiresAPICfg struct {
	BaseURL  string
	Token    string
	Requests map[string]string
}

func FromEnv() Config {
	return Config{
		Addr:         getenv("ADDR", ":8085"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		DatabaseURL:  getenv("DATABASE_URL", "postgres://localhost:5432/fires"),
		DBMaxConns:   getint("DB_MAX_CONNS", 10),
		RedisAddr:    getenv("REDIS_ADDR", ""),
		ScratchDir:   getenv("SCRATCH_DIR", os.TempDir()),
		QueryTimeout: getduration("QUERY_TIMEOUT", 30*time.Second),
		HierCacheLen: getint("HIERARCHY_CACHE_LEN", 256),
		Tables:       DefaultTables(),
		Spatial:      DefaultSpatialFilter(),
		Token: TokenCfg{
			Driver: getenv("TOKEN_DRIVER", "memory"),
			TTL:    getduration("TOKEN_TTL", 5*time.Second),
			Strict: getbool("TOKEN_STRICT", false),
		},
		Audit: AuditCfg{
			Enabled: getbool("AUDIT_ENABLED", false),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("AUDIT_TOPIC", "export-downloads"),
		},
		FiresAPI: FiresAPICfg{
			BaseURL: getenv("FIRES_API_URL", "https://queimadas.dgi.inpe.br/api"),
			Token:   getenv("FIRES_API_TOKEN", ""),
			Requests: map[string]string{
				"Focos":      "/focos?token={TOKEN}",
				"Paises":     "/paises/{0}?token={TOKEN}",
				"Satelites":  "/satelites?token={TOKEN}",
				"Municipios": "/municipios/{0}/{1}?token={TOKEN}",
			},
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
