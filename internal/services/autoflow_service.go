package services

import (
	"log"
	"time"

	"gorm.io/gorm"

	"kitchenline/server/internal/models"
)

// Причины остановки авто-продвижения
const (
	PauseReasonNoTarget          = "no target"
	PauseReasonInvalidTransition = "invalid transition"
)

// AutoFlowService фоновое продвижение заказов по фазам.
// Каждый заказ обрабатывается под своей блокировкой, сбой одного
// заказа не прерывает проход.
type AutoFlowService struct {
	db     *gorm.DB
	orders *OrderService
	stop   chan struct{}
}

// NewAutoFlowService создает планировщик авто-продвижения
func NewAutoFlowService(db *gorm.DB, orders *OrderService) *AutoFlowService {
	return &AutoFlowService{
		db:     db,
		orders: orders,
		stop:   make(chan struct{}),
	}
}

// Sweep продвигает заказы с истекшим таймером, не больше maxOrders за
// один проход. Заказы берутся по возрастанию дедлайна. Возвращает
// количество реально продвинутых заказов.
func (a *AutoFlowService) Sweep(maxOrders int) (int, error) {
	if maxOrders <= 0 {
		maxOrders = 50
	}
	now := time.Now().UTC()

	var dueIDs []string
	err := a.db.Model(&models.Order{}).
		Where("auto_advance_paused = ? AND auto_advance_at IS NOT NULL AND auto_advance_at <= ?", false, now).
		Order("auto_advance_at ASC").
		Limit(maxOrders).
		Pluck("id", &dueIDs).Error
	if err != nil {
		return 0, err
	}
	if len(dueIDs) == 0 {
		return 0, nil
	}

	advanced := 0
	for _, orderID := range dueIDs {
		moved, err := a.advanceOne(orderID)
		if err != nil {
			log.Printf("⚠️ Авто-продвижение заказа %s не удалось: %v", orderID, err)
			continue
		}
		if moved {
			advanced++
		}
	}

	if advanced > 0 {
		log.Printf("🧹 Авто-продвижение: %d из %d заказов продвинуто", advanced, len(dueIDs))
	}
	return advanced, nil
}

// advanceOne обрабатывает один заказ под блокировкой с перепроверкой условий
func (a *AutoFlowService) advanceOne(orderID string) (bool, error) {
	var order models.Order
	moved := false
	becameCompleted := false

	err := withRetry(a.db, maxTxRetries, func(tx *gorm.DB) error {
		moved = false
		becameCompleted = false

		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}

		now := time.Now().UTC()

		// Перепроверка под блокировкой: заказ мог измениться между выборкой и захватом
		if order.AutoAdvancePaused || order.AutoAdvanceAt == nil || order.AutoAdvanceAt.After(now) {
			return nil
		}
		if IsTerminalOrderStatus(order.Status) {
			order.AutoAdvanceTarget = ""
			order.AutoAdvanceAt = nil
			return saveOrder(tx, &order)
		}

		target := order.AutoAdvanceTarget
		if target == "" {
			target = NextAutoPhase(order.Status)
		}
		if target == "" {
			clearAutoAdvance(&order, PauseReasonNoTarget)
			return saveOrder(tx, &order)
		}
		if !CanTransitionOrder(order.Status, target) {
			clearAutoAdvance(&order, PauseReasonInvalidTransition)
			return saveOrder(tx, &order)
		}

		fromStatus := order.Status
		ApplyOrderStatus(&order, target, now)
		RecalcCounters(&order, now)

		if err := saveOrder(tx, &order); err != nil {
			return err
		}
		a.orders.recordEvent(tx, &order, nil, actorAutoFlow, models.EventOrderStatusAuto, fromStatus, target, models.JSONMap{
			"trigger": "timer",
		})

		moved = true
		becameCompleted = target == OrderStatusCompleted
		return nil
	})
	if err != nil {
		return false, err
	}

	if moved {
		if becameCompleted && a.orders.inventory != nil {
			go a.orders.inventory.ConsumeForOrder(&order)
		}
		a.orders.publish(models.EventOrderStatusAuto, &order, nil)
	}
	return moved, nil
}

// Start запускает периодический проход в фоне
func (a *AutoFlowService) Start(interval time.Duration, maxOrders int) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("🚀 Планировщик авто-продвижения запущен (интервал %v, лимит %d)", interval, maxOrders)
		for {
			select {
			case <-ticker.C:
				if _, err := a.Sweep(maxOrders); err != nil {
					log.Printf("⚠️ Ошибка прохода авто-продвижения: %v", err)
				}
			case <-a.stop:
				log.Println("🛑 Планировщик авто-продвижения остановлен")
				return
			}
		}
	}()
}

// Stop останавливает фоновый проход
func (a *AutoFlowService) Stop() {
	close(a.stop)
}

// clearAutoAdvance останавливает авто-продвижение с причиной
func clearAutoAdvance(order *models.Order, reason string) {
	order.AutoAdvancePaused = true
	order.AutoAdvancePauseReason = reason
	order.AutoAdvanceTarget = ""
	order.AutoAdvanceAt = nil
}
