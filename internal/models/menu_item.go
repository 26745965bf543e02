package models

import (
	"time"
)

// MenuItem позиция меню. Справочник только для чтения при создании заказа.
type MenuItem struct {
	ID                 string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name               string  `gorm:"type:varchar(255);not null;index" json:"name"`
	Category           string  `gorm:"type:varchar(64);index" json:"category"`
	Price              float64 `gorm:"type:decimal(10,2);default:0" json:"price"`
	PreparationMinutes int     `gorm:"default:5" json:"preparation_minutes"`
	IsAvailable        bool    `gorm:"default:true" json:"is_available"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName возвращает имя таблицы
func (MenuItem) TableName() string {
	return "menu_items"
}
