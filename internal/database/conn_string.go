package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/market-ingest/internal/config"
)

// ApplicationName tags every session in pg_stat_activity.
const ApplicationName = "market-ingest"

// BuildConnString builds a PostgreSQL URL from config. An explicit URL wins
// over the individual fields and is returned untouched.
func BuildConnString(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	host := cfg.Host
	if cfg.Port > 0 {
		host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host,
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
