package database

import (
	"errors"
	"fmt"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PasswordCost is the bcrypt cost used for every stored password.
const PasswordCost = 12

func Connect(cfg config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	log.Info("Database connected successfully", nil)
	return db, nil
}

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.StudentProfile{},
		&models.TeacherProfile{},
		&models.AdminProfile{},
		&models.Subject{},
		&models.Exam{},
		&models.Attendance{},
		&models.Grade{},
		&models.Assignment{},
		&models.Submission{},
		&models.Fee{},
		&models.FeePayment{},
		&models.Notification{},
		&models.NotificationRecipient{},
		&models.ChatRoom{},
		&models.ChatRoomMember{},
		&models.ChatMessage{},
		&models.Payment{},
		&models.PaymentMethod{},
		&models.Refund{},
		&models.PaymentGatewayConfig{},
		&models.PaymentGatewayEvent{},
		&models.Event{},
		&models.EventRegistration{},
		&models.Club{},
		&models.ClubMembership{},
		&models.EmailLog{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedAdmin creates the configured administrator when no user holds that email.
func SeedAdmin(db *gorm.DB, cfg config.AdminConfig, log logger.Logger) error {
	if cfg.Email == "" || cfg.Password == "" {
		log.Warn("Admin seed skipped: ADMIN_EMAIL or ADMIN_PASSWORD not set", nil)
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", cfg.Email).First(&existing).Error
	if err == nil {
		log.Info("Admin user already exists", map[string]interface{}{"email": cfg.Email})
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), PasswordCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := models.User{
		Email:    cfg.Email,
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
		IsActive: true,
		Profile:  models.Profile{FirstName: cfg.FirstName, LastName: cfg.LastName},
		Admin: &models.AdminProfile{
			AdminID:     "ADM" + utils.RandomDigits(6),
			Permissions: []string{"all"},
		},
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	log.Info("Admin user seeded successfully", map[string]interface{}{"email": cfg.Email})
	return nil
}
