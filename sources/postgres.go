package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotConnected is returned when an extractor runs without a connection.
	ErrNotConnected = errors.New("source not connected")
)

type PostgresConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gt=0,lt=65536"`
	DBName          string        `koanf:"dbname"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ApplicationName string        `koanf:"application_name"`
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "127.0.0.1",
		Port:            5432,
		SSLMode:         "disable",
		ConnectTimeout:  5 * time.Second,
		ApplicationName: "postgres_to_es",
	}
}

// DSN renders the config as a postgres:// URL.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.DBName,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Querier is the read access extractors need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Conn is a source connection owned by the scheduler. *pgx.Conn satisfies it.
type Conn interface {
	Querier
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connect opens a single connection to Postgres.
func Connect(ctx context.Context, cfg PostgresConfig) (*pgx.Conn, error) {
	log.Trace().Str("host", cfg.Host).Int("port", cfg.Port).Str("dbname", cfg.DBName).Msg("connecting to postgres...")
	conn, err := pgx.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return conn, nil
}
