package db

import (
	"log"
	"strconv"

	"github.com/glebarez/sqlite"
	"github.com/quintela/searchledger/internal/db/models"
	"gorm.io/gorm"
)

// InitDB opens the SQLite database, runs migrations and seeds the default
// search price on first run.
func InitDB(dbPath string, defaultPrice int64) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := db.AutoMigrate(&models.Account{}, &models.Setting{}, &models.SearchLog{}); err != nil {
		return nil, err
	}

	ensurePrice(db, defaultPrice)

	return db, nil
}

// ensurePrice seeds the price row if it does not exist yet. An existing row
// is left alone so admin price changes survive restarts.
func ensurePrice(db *gorm.DB, defaultPrice int64) {
	var setting models.Setting
	result := db.Where("key = ?", priceKey).First(&setting)

	if result.Error != nil {
		db.Create(&models.Setting{
			Key:   priceKey,
			Value: strconv.FormatInt(defaultPrice, 10),
		})
		log.Printf("[store] Seeded search price: %d credits", defaultPrice)
	}
}
