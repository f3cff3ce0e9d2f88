package data

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/stake-plus/dao-governance/src/logging"
)

// ConnectMySQL opens a gorm DB with sane defaults, retrying with
// exponential backoff until maxWait has passed.
func ConnectMySQL(dsn string, log *zap.Logger, maxWait time.Duration) (*gorm.DB, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	// Updates report matched rows, not changed rows.
	dsn = ensureParam(dsn, "clientFoundRows", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}

	cfg := &gorm.Config{
		Logger:         logging.NewGormLogger(log, time.Second),
		TranslateError: true,
	}

	var db *gorm.DB
	open := func() error {
		var err error
		db, err = gorm.Open(mysql.Open(dsn), cfg)
		if err != nil {
			log.Warn("mysql connect failed, retrying", zap.Error(err))
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		return sqlDB.Ping()
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait
	if err := backoff.Retry(open, bo); err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}
