package models

import (
	"time"
)

// StockLevel остаток по позиции меню. Списывается best-effort при
// завершении заказа, отрицательные значения допустимы (инвентаризация
// выравнивает их отдельно).
type StockLevel struct {
	ID         string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	MenuItemID string  `gorm:"type:varchar(36);uniqueIndex;not null" json:"menu_item_id"`
	Quantity   float64 `gorm:"type:decimal(12,3);default:0" json:"quantity"`
	Unit       string  `gorm:"type:varchar(16);default:'pcs'" json:"unit"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName возвращает имя таблицы
func (StockLevel) TableName() string {
	return "stock_levels"
}
