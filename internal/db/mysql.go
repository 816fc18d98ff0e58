package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"imagevault/internal/model"
)

// NewMySQL returns a connected GORM DB instance. Duplicate-key violations are
// translated to gorm.ErrDuplicatedKey so repositories can map them.
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	return db, nil
}

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&model.Identity{},
		&model.Asset{},
		&model.ActivityLog{},
	}
}

// Migrate creates or updates all tables. When reset is true existing tables
// are dropped first, children before parents.
func Migrate(db *gorm.DB, reset bool) error {
	models := Models()
	if reset {
		for i := len(models) - 1; i >= 0; i-- {
			if err := db.Migrator().DropTable(models[i]); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
		}
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
