package models

import (
	"time"

	"gorm.io/gorm"
)

// KitchenStation кухонная станция (гриль, фритюр, бар и т.д.)
type KitchenStation struct {
	ID   string `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID как строка
	Code string `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Name string `gorm:"type:varchar(64);not null" json:"name"`

	Tags StringList `gorm:"type:jsonb" json:"tags"`

	// Мягкий лимит одновременных позиций, превышение не блокирует, а растягивает котировку
	Capacity               int `gorm:"default:4" json:"capacity"`
	AutoBatchWindowSeconds int `gorm:"default:90" json:"auto_batch_window_seconds"`

	IsActive  bool `gorm:"default:true" json:"is_active"`
	IsExpo    bool `gorm:"default:false" json:"is_expo"`
	SortOrder int  `gorm:"default:100" json:"sort_order"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName возвращает имя таблицы
func (KitchenStation) TableName() string {
	return "kitchen_stations"
}

// ToMap преобразует KitchenStation в map для API ответа
func (s *KitchenStation) ToMap() map[string]interface{} {
	tags := s.Tags
	if tags == nil {
		tags = StringList{}
	}

	return map[string]interface{}{
		"id":                        s.ID,
		"code":                      s.Code,
		"name":                      s.Name,
		"tags":                      tags,
		"capacity":                  s.Capacity,
		"auto_batch_window_seconds": s.AutoBatchWindowSeconds,
		"is_active":                 s.IsActive,
		"is_expo":                   s.IsExpo,
		"sort_order":                s.SortOrder,
		"created_at":                s.CreatedAt.Format(time.RFC3339),
		"updated_at":                s.UpdatedAt.Format(time.RFC3339),
	}
}

// DefaultStations стандартный набор станций для новой инсталляции
func DefaultStations() []KitchenStation {
	return []KitchenStation{
		{Code: "grill", Name: "Grill", Tags: StringList{"hot", "protein"}, Capacity: 4, AutoBatchWindowSeconds: 120, SortOrder: 10},
		{Code: "fry", Name: "Fry", Tags: StringList{"hot", "sides"}, Capacity: 6, AutoBatchWindowSeconds: 90, SortOrder: 20},
		{Code: "salad", Name: "Salad", Tags: StringList{"cold"}, Capacity: 3, AutoBatchWindowSeconds: 60, SortOrder: 30},
		{Code: "dessert", Name: "Dessert", Tags: StringList{"cold", "sweet"}, Capacity: 2, AutoBatchWindowSeconds: 75, SortOrder: 40},
		{Code: "bar", Name: "Beverage Bar", Tags: StringList{"drinks"}, Capacity: 3, AutoBatchWindowSeconds: 45, SortOrder: 50},
		{Code: "expo", Name: "Expo / Pass", Tags: StringList{"assembly"}, Capacity: 8, AutoBatchWindowSeconds: 30, SortOrder: 5, IsExpo: true},
	}
}
