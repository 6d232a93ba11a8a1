package dbexec

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

// mysqlTLSKey is the name under which a custom root CA is registered with the
// mysql driver. Registration is process-wide in the driver.
const mysqlTLSKey = "askdb"

type Config struct {
	// Driver selects the target database: mysql, postgres, or duckdb.
	Driver string

	// Host, Port, User, Password, and Database describe a mysql target.
	// Port defaults to 3306.
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// TLSCA is PEM-encoded root CA material for mysql connections. Empty
	// means no TLS.
	TLSCA string

	// DSN is the connection string for postgres targets and the file path
	// (or empty, for in-memory) for duckdb targets.
	DSN string
}

// Open connects to the target database and verifies the connection with a
// bounded ping.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	driver := strings.TrimSpace(strings.ToLower(cfg.Driver))
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverMySQL:
		dsn, dsnErr := mysqlDSN(cfg)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = sql.Open("mysql", dsn)
	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		db, err = sql.Open("pgx", cfg.DSN)
	case DriverDuckDB:
		db, err = sql.Open("duckdb", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, nil
}

func mysqlDSN(cfg Config) (string, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return "", fmt.Errorf("mysql host is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return "", fmt.Errorf("mysql database name is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", strings.TrimSpace(cfg.Host), port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = strings.TrimSpace(cfg.Database)
	mc.ParseTime = true

	if strings.TrimSpace(cfg.TLSCA) != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(cfg.TLSCA)) {
			return "", fmt.Errorf("mysql tls ca material is not valid PEM")
		}
		if err := mysql.RegisterTLSConfig(mysqlTLSKey, &tls.Config{RootCAs: pool}); err != nil {
			return "", fmt.Errorf("register mysql tls config: %w", err)
		}
		mc.TLSConfig = mysqlTLSKey
	}

	return mc.FormatDSN(), nil
}
