package models

import (
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutoMigrate создает таблицы в БД
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&KitchenStation{}); err != nil {
		log.Printf("❌ AutoMigrate для KitchenStation failed: %v", err)
		return err
	}
	log.Println("✅ KitchenStation table migrated successfully")

	if err := db.AutoMigrate(&MenuItem{}); err != nil {
		log.Printf("❌ AutoMigrate для MenuItem failed: %v", err)
		return err
	}
	log.Println("✅ MenuItem table migrated successfully")

	if err := db.AutoMigrate(&Order{}); err != nil {
		log.Printf("❌ AutoMigrate для Order failed: %v", err)
		return err
	}
	log.Println("✅ Order table migrated successfully")

	if err := db.AutoMigrate(&OrderItem{}); err != nil {
		log.Printf("❌ AutoMigrate для OrderItem failed: %v", err)
		return err
	}
	log.Println("✅ OrderItem table migrated successfully")

	if err := db.AutoMigrate(&OrderEvent{}); err != nil {
		log.Printf("❌ AutoMigrate для OrderEvent failed: %v", err)
		return err
	}
	log.Println("✅ OrderEvent table migrated successfully")

	if err := db.AutoMigrate(&StockLevel{}); err != nil {
		log.Printf("❌ AutoMigrate для StockLevel failed: %v", err)
		return err
	}
	log.Println("✅ StockLevel table migrated successfully")

	if err := db.AutoMigrate(&AuditRecord{}); err != nil {
		log.Printf("❌ AutoMigrate для AuditRecord failed: %v", err)
		return err
	}
	log.Println("✅ AuditRecord table migrated successfully")

	if err := SeedDefaultStations(db); err != nil {
		log.Printf("⚠️ Ошибка инициализации станций: %v", err)
	}

	return nil
}

// SeedDefaultStations создает стандартные станции, если их еще нет (идемпотентно)
func SeedDefaultStations(db *gorm.DB) error {
	for _, station := range DefaultStations() {
		var existing KitchenStation
		result := db.Where("code = ?", station.Code).First(&existing)
		if result.Error == nil {
			continue
		}
		if result.Error != gorm.ErrRecordNotFound {
			return result.Error
		}

		station.ID = uuid.New().String()
		station.IsActive = true
		if err := db.Create(&station).Error; err != nil {
			return err
		}
		log.Printf("✅ Создана станция по умолчанию: %s (%s)", station.Name, station.Code)
	}
	return nil
}
