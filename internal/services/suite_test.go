// internal/services/suite_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marketbridge/wholesale-backend/internal/config"
	"github.com/marketbridge/wholesale-backend/internal/models"
	"github.com/marketbridge/wholesale-backend/internal/sequence"
)

// newTestDB opens an in-memory database capped at one connection so every
// query and transaction sees the same store.
func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.RFQ{},
		&models.Quote{},
		&models.Order{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
		Payment: config.PaymentConfig{
			DeferredMethods: []string{"invoice", "net30", "net60"},
		},
		Orders: config.OrdersConfig{
			OrderPrefix:      "ORD",
			RFQPrefix:        "RFQ",
			DefaultCurrency:  "USD",
			TaxRate:          0.1,
			ShippingFlatRate: 25,
		},
	}
}

func newTestUser(t *testing.T, db *gorm.DB, userType models.UserType) *models.User {
	tag := uuid.NewString()[:8]
	user := &models.User{
		Username:     fmt.Sprintf("%s_%s", userType, tag),
		Email:        fmt.Sprintf("%s_%s@example.com", userType, tag),
		PasswordHash: "x",
		UserType:     userType,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// newEngine wires the order and RFQ services over one database with the
// broker-less event sink.
func newEngine(t *testing.T) (*gorm.DB, *config.Config, *OrderService, *RFQService) {
	db := newTestDB(t)
	cfg := testConfig()
	notifications := NewNotificationService(config.KafkaConfig{})
	seq := sequence.New(nil)

	orders := NewOrderService(db, cfg, seq, notifications)
	rfqs := NewRFQService(db, cfg, seq, orders, notifications)
	return db, cfg, orders, rfqs
}
