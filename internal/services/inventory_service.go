package services

import (
	"log"

	"gorm.io/gorm"

	"kitchenline/server/internal/models"
)

// InventoryService списывает остатки при завершении заказа.
// Вызывается fire-and-forget: ошибка списания никогда не откатывает заказ.
type InventoryService struct {
	db *gorm.DB
}

// NewInventoryService создает сервис списания остатков
func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db}
}

// ConsumeForOrder уменьшает остатки по всем позициям заказа.
// Позиции без привязки к меню или без строки остатка пропускаются.
func (s *InventoryService) ConsumeForOrder(order *models.Order) {
	for i := range order.Items {
		item := &order.Items[i]
		if item.MenuItemID == "" || item.Quantity <= 0 {
			continue
		}
		if item.State == ItemStateCancelled {
			continue
		}

		result := s.db.Model(&models.StockLevel{}).
			Where("menu_item_id = ?", item.MenuItemID).
			UpdateColumn("quantity", gorm.Expr("quantity - ?", float64(item.Quantity)))
		if result.Error != nil {
			log.Printf("⚠️ Списание остатка для %s не удалось: %v", item.ItemName, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			// Остаток не отслеживается, это нормально
			continue
		}
	}
	log.Printf("📦 Остатки списаны по заказу %s", order.OrderNumber)
}
