package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	config "github.com/sdcpainting/referral_site/configs"
	"github.com/sdcpainting/referral_site/models"
	"github.com/sdcpainting/referral_site/store"
)

// Connect opens the SQL database named by cfg.Driver.
func Connect(cfg config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	log.Info("database connected", zap.String("driver", cfg.Driver))
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	}
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.ReferralCode{},
		&models.Estimate{},
		&models.GalleryItem{},
		&models.Testimonial{},
		&models.DeadLetter{},
		&models.QueuedJob{},
		&models.Orphan{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// OpenStore exposes db through the Record Store interfaces.
func OpenStore(db *gorm.DB) *store.Store {
	return &store.Store{
		Users:        NewCollection(db, func() *models.User { return &models.User{} }),
		Referrals:    NewCollection(db, func() *models.ReferralCode { return &models.ReferralCode{} }),
		Estimates:    NewCollection(db, func() *models.Estimate { return &models.Estimate{} }),
		Gallery:      NewCollection(db, func() *models.GalleryItem { return &models.GalleryItem{} }),
		Testimonials: NewCollection(db, func() *models.Testimonial { return &models.Testimonial{} }),
		DeadLetters:  NewCollection(db, func() *models.DeadLetter { return &models.DeadLetter{} }),
		Jobs:         NewCollection(db, func() *models.QueuedJob { return &models.QueuedJob{} }),
		Orphans:      NewCollection(db, func() *models.Orphan { return &models.Orphan{} }),
	}
}
