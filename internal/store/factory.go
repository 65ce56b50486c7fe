package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	apperrors "github.com/room-compactor/room-compactor/pkg/errors"
	"github.com/room-compactor/room-compactor/pkg/telemetry"
)

// DBType identifies which dialect a connection string names.
type DBType string

const (
	DBTypePostgres DBType = "postgres"
	DBTypeMySQL    DBType = "mysql"
	DBTypeSQLite   DBType = "sqlite"
)

// ParseDBURL splits a db_url configuration value into a DBType and the
// driver-specific DSN, recognizing the scheme (postgres://, mysql://,
// sqlite:// or a bare file path for sqlite).
func ParseDBURL(dbURL string) (DBType, string, error) {
	if dbURL == "" {
		return "", "", apperrors.New(apperrors.CodeConfigError, "db_url is required")
	}

	u, err := url.Parse(dbURL)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeConfigError, "invalid db_url", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return DBTypePostgres, dbURL, nil
	case "mysql":
		return DBTypeMySQL, strings.TrimPrefix(dbURL, "mysql://"), nil
	case "sqlite", "file":
		return DBTypeSQLite, strings.TrimPrefix(dbURL, u.Scheme+"://"), nil
	case "":
		// No scheme: treat as a bare sqlite file path (used by tests).
		return DBTypeSQLite, dbURL, nil
	default:
		return "", "", apperrors.New(apperrors.CodeConfigError, fmt.Sprintf("unsupported db_url scheme: %s", u.Scheme))
	}
}

// Connect opens a *gorm.DB for the given db_url, wiring the OpenTelemetry
// tracing plugin when telemetry is enabled and verifying connectivity.
func Connect(dbURL string) (*gorm.DB, error) {
	dbType, dsn, err := ParseDBURL(dbURL)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch dbType {
	case DBTypePostgres:
		dialector = postgres.Open(dsn)
	case DBTypeMySQL:
		dialector = mysql.Open(dsn)
	case DBTypeSQLite:
		dialector = sqlite.Open(dsn)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnectError, "failed to open database", err)
	}

	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConnectError, "failed to enable telemetry", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConnectError, "failed to get underlying sql.DB", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, apperrors.Wrap(apperrors.CodeConnectError, "failed to ping database", err)
	}

	return db, nil
}
