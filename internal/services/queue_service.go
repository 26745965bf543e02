package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"kitchenline/server/internal/models"
)

// Статусы заказов, видимые в живой очереди кухни
var queueVisibleStatuses = []string{
	OrderStatusNew,
	OrderStatusAccepted,
	OrderStatusInPrep,
	OrderStatusAssembling,
	OrderStatusStaged,
	OrderStatusHandoff,
}

// QueueService собирает живую проекцию очереди кухни:
// заказы, загрузка станций, кандидаты на батчи, сводка.
type QueueService struct {
	db      *gorm.DB
	batches *BatchService
}

// NewQueueService создает сервис проекции очереди
func NewQueueService(db *gorm.DB, batches *BatchService) *QueueService {
	return &QueueService{db: db, batches: batches}
}

// View строит снимок очереди на текущий момент
func (q *QueueService) View() (map[string]interface{}, error) {
	now := time.Now().UTC()

	var stations []models.KitchenStation
	if err := q.db.Order("sort_order ASC").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}

	var orders []models.Order
	err := q.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	}).
		Where("status IN ?", queueVisibleStatuses).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load queue orders: %w", err)
	}

	// Сортировка очереди: приоритет, дольше всех в фазе, номер заказа
	sort.Slice(orders, func(i, j int) bool {
		ri, rj := PriorityRank(orders[i].Priority), PriorityRank(orders[j].Priority)
		if ri != rj {
			return ri < rj
		}
		si, sj := phaseSeconds(&orders[i], now), phaseSeconds(&orders[j], now)
		if si != sj {
			return si > sj
		}
		return orders[i].OrderNumber < orders[j].OrderNumber
	})

	// Активные позиции, сгруппированные по станциям
	var activeItems []models.OrderItem
	orderNumbers := make(map[string]string, len(orders))
	orderPriorities := make(map[string]string, len(orders))
	for i := range orders {
		orderNumbers[orders[i].ID] = orders[i].OrderNumber
		orderPriorities[orders[i].ID] = orders[i].Priority
		for _, item := range orders[i].Items {
			if IsActiveItemState(item.State) {
				activeItems = append(activeItems, item)
			}
		}
	}

	byStation := make(map[string][]models.OrderItem)
	wip := make(map[string]int)
	for _, item := range activeItems {
		byStation[item.StationCode] = append(byStation[item.StationCode], item)
		wip[item.StationCode] += item.Quantity
	}

	knownCodes := make(map[string]bool, len(stations))
	stationPayloads := make([]map[string]interface{}, 0, len(stations))
	maxUtilization := 0.0
	capacitySnapshot := make([]map[string]interface{}, 0, len(stations))
	for i := range stations {
		s := &stations[i]
		knownCodes[s.Code] = true

		items := byStation[s.Code]
		sortStationItems(items, orderNumbers, orderPriorities, now)

		capacity := s.Capacity
		if capacity < 1 {
			capacity = 1
		}
		utilization := float64(wip[s.Code]) / float64(capacity)
		if s.IsActive && utilization > maxUtilization {
			maxUtilization = utilization
		}

		itemPayloads := make([]map[string]interface{}, 0, len(items))
		for j := range items {
			payload := items[j].ToMap()
			payload["order_number"] = orderNumbers[items[j].OrderID]
			payload["seconds_in_state"] = int(now.Sub(items[j].UpdatedAt).Seconds())
			itemPayloads = append(itemPayloads, payload)
		}

		stationPayloads = append(stationPayloads, map[string]interface{}{
			"station":       s.ToMap(),
			"queue_depth":   len(items),
			"wip":           wip[s.Code],
			"utilization":   round2(utilization),
			"over_capacity": utilization > 1,
			"items":         itemPayloads,
		})
		capacitySnapshot = append(capacitySnapshot, map[string]interface{}{
			"code":          s.Code,
			"capacity":      capacity,
			"wip":           wip[s.Code],
			"utilization":   round2(utilization),
			"over_capacity": utilization > 1,
			"is_active":     s.IsActive,
		})
	}

	// Позиции со станций, которых уже нет в справочнике
	adhocCodes := make([]string, 0)
	for code := range byStation {
		if !knownCodes[code] {
			adhocCodes = append(adhocCodes, code)
		}
	}
	sort.Strings(adhocCodes)
	for _, code := range adhocCodes {
		items := byStation[code]
		sortStationItems(items, orderNumbers, orderPriorities, now)
		itemPayloads := make([]map[string]interface{}, 0, len(items))
		for j := range items {
			payload := items[j].ToMap()
			payload["order_number"] = orderNumbers[items[j].OrderID]
			payload["seconds_in_state"] = int(now.Sub(items[j].UpdatedAt).Seconds())
			itemPayloads = append(itemPayloads, payload)
		}
		stationPayloads = append(stationPayloads, map[string]interface{}{
			"station": map[string]interface{}{
				"code":      code,
				"name":      code,
				"is_active": false,
				"adhoc":     true,
			},
			"wip":         wip[code],
			"queue_depth": len(items),
			"utilization": 0.0,
			"items":       itemPayloads,
		})
	}

	// Рекомендованная котировка на основе пиковой загрузки
	recommendedQuote := 12.0
	if maxUtilization > 0.85 {
		recommendedQuote += (maxUtilization - 0.85) * 20
	}
	recommendedQuoteMinutes := int(math.Max(8, math.Floor(recommendedQuote)))

	// Сводка по статусам, каналам и приоритетам
	statusCounts := make(map[string]int)
	channelCounts := make(map[string]int)
	priorityCounts := make(map[string]int)
	throttled := 0
	late := 0
	lateSecondsTotal := 0
	for i := range orders {
		statusCounts[orders[i].Status]++
		channelCounts[orders[i].Channel]++
		priorityCounts[orders[i].Priority]++
		if orders[i].IsThrottled {
			throttled++
		}
		if orders[i].LateBySeconds > 0 || (orders[i].PromisedTime != nil && now.After(*orders[i].PromisedTime)) {
			late++
			if orders[i].LateBySeconds > 0 {
				lateSecondsTotal += orders[i].LateBySeconds
			} else if orders[i].PromisedTime != nil {
				lateSecondsTotal += int(now.Sub(*orders[i].PromisedTime).Seconds())
			}
		}
	}

	// Тайминги приготовления по уже готовым позициям видимых заказов
	prepSecondsTotal := 0
	prepSamples := 0
	for i := range orders {
		for _, item := range orders[i].Items {
			if item.CookSecondsActual > 0 {
				prepSecondsTotal += item.CookSecondsActual
				prepSamples++
			}
		}
	}
	avgPrepSeconds := 0
	if prepSamples > 0 {
		avgPrepSeconds = prepSecondsTotal / prepSamples
	}
	avgLateSeconds := 0
	if late > 0 {
		avgLateSeconds = lateSecondsTotal / late
	}
	onTimePercent := 100.0
	if len(orders) > 0 {
		onTimePercent = round2(float64(len(orders)-late) / float64(len(orders)) * 100)
	}

	// Заказы, ожидающие выдачи
	handoffPending := make([]map[string]interface{}, 0)
	for i := range orders {
		if orders[i].Status == OrderStatusStaged || orders[i].Status == OrderStatusHandoff {
			handoffPending = append(handoffPending, map[string]interface{}{
				"order_id":     orders[i].ID,
				"order_number": orders[i].OrderNumber,
				"status":       orders[i].Status,
				"shelf_slot":   orders[i].ShelfSlot,
				"handoff_code": orders[i].HandoffCode,
			})
		}
	}

	orderPayloads := make([]map[string]interface{}, 0, len(orders))
	for i := range orders {
		payload := orders[i].ToMap()
		payload["seconds_in_phase"] = phaseSeconds(&orders[i], now)
		orderPayloads = append(orderPayloads, payload)
	}

	candidates := q.batches.Detect(activeItems, stations)

	var cursor struct {
		LastEventAt *time.Time
	}
	q.db.Model(&models.OrderEvent{}).Select("MAX(created_at) as last_event_at").Scan(&cursor)
	eventCursor := ""
	if cursor.LastEventAt != nil {
		eventCursor = cursor.LastEventAt.Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"orders":        orderPayloads,
		"stations":      stationPayloads,
		"smart_batches": candidates,
		"capacity": map[string]interface{}{
			"stations":                  capacitySnapshot,
			"max_utilization":           round2(maxUtilization),
			"recommended_quote_minutes": recommendedQuoteMinutes,
		},
		"summary": map[string]interface{}{
			"active_orders":    len(orders),
			"by_status":        statusCounts,
			"by_channel":       channelCounts,
			"by_priority":      priorityCounts,
			"throttled":        throttled,
			"late":             late,
			"active_items":     len(activeItems),
			"avg_prep_seconds": avgPrepSeconds,
			"avg_late_seconds": avgLateSeconds,
			"on_time_percent":  onTimePercent,
		},
		"handoff_pending": handoffPending,
		"event_cursor":    eventCursor,
		"generated_at":    now.Format(time.RFC3339),
	}, nil
}

// phaseSeconds сколько секунд заказ находится в текущей фазе
func phaseSeconds(order *models.Order, now time.Time) int {
	started := order.UpdatedAt
	if order.PhaseStartedAt != nil {
		started = *order.PhaseStartedAt
	}
	seconds := int(now.Sub(started).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// sortStationItems сортирует позиции станции: приоритет,
// дольше всех в состоянии, номер заказа
func sortStationItems(items []models.OrderItem, orderNumbers, orderPriorities map[string]string, now time.Time) {
	sort.Slice(items, func(i, j int) bool {
		pi := PriorityRank(itemPriority(&items[i], orderPriorities))
		pj := PriorityRank(itemPriority(&items[j], orderPriorities))
		if pi != pj {
			return pi < pj
		}
		si := now.Sub(items[i].UpdatedAt)
		sj := now.Sub(items[j].UpdatedAt)
		if si != sj {
			return si > sj
		}
		return orderNumbers[items[i].OrderID] < orderNumbers[items[j].OrderID]
	})
}

func itemPriority(item *models.OrderItem, orderPriorities map[string]string) string {
	if item.Priority != "" {
		return item.Priority
	}
	return orderPriorities[item.OrderID]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
