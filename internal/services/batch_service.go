package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"kitchenline/server/internal/models"
)

// BatchService ищет кандидатов на совместное приготовление.
// Чисто рекомендательный сервис, позиции он не меняет.
type BatchService struct{}

// NewBatchService создает детектор батчей
func NewBatchService() *BatchService {
	return &BatchService{}
}

// BatchCandidate группа одинаковых позиций на одной станции,
// которые выгодно жарить вместе
type BatchCandidate struct {
	StationCode       string    `json:"station_code"`
	MenuItemKey       string    `json:"menu_item_key"`
	ItemName          string    `json:"item_name"`
	ItemIDs           []string  `json:"item_ids"`
	OrderIDs          []string  `json:"order_ids"`
	TotalQuantity     int       `json:"total_quantity"`
	RecommendedFireAt time.Time `json:"recommended_fire_at"`
}

// NewBatchID генерирует идентификатор батча вида GRILL-260831142501
func NewBatchID(stationCode string, now time.Time) string {
	prefix := strings.ToUpper(strings.TrimSpace(stationCode))
	if prefix == "" {
		prefix = "BATCH"
	}
	return fmt.Sprintf("%s-%s", prefix, now.Format("060102150405"))
}

// Detect находит кандидатов среди queued/firing позиций.
// Группировка по (станция, позиция меню), окно станции ограничивает разброс
// времени создания. Время старта = created_at самой ранней позиции + окно.
func (b *BatchService) Detect(items []models.OrderItem, stations []models.KitchenStation) []BatchCandidate {
	windows := make(map[string]time.Duration, len(stations))
	for _, s := range stations {
		windows[s.Code] = time.Duration(s.AutoBatchWindowSeconds) * time.Second
	}

	type groupKey struct {
		station string
		item    string
	}
	groups := make(map[groupKey][]models.OrderItem)
	for _, item := range items {
		if item.State != ItemStateQueued && item.State != ItemStateFiring {
			continue
		}
		if item.StationCode == "" {
			continue
		}
		key := groupKey{station: item.StationCode, item: item.MenuItemID}
		if key.item == "" {
			key.item = strings.ToLower(item.ItemName)
		}
		groups[key] = append(groups[key], item)
	}

	var candidates []BatchCandidate
	for key, entries := range groups {
		if len(entries) < 2 {
			continue
		}

		window, ok := windows[key.station]
		if !ok || window <= 0 {
			continue
		}

		sort.Slice(entries, func(i, j int) bool {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})

		first := entries[0].CreatedAt
		last := entries[len(entries)-1].CreatedAt
		if last.Sub(first) > window {
			continue
		}

		total := 0
		itemIDs := make([]string, 0, len(entries))
		orderIDs := make([]string, 0, len(entries))
		for _, e := range entries {
			total += e.Quantity
			itemIDs = append(itemIDs, e.ID)
			orderIDs = append(orderIDs, e.OrderID)
		}
		if total <= 1 {
			continue
		}

		candidates = append(candidates, BatchCandidate{
			StationCode:       key.station,
			MenuItemKey:       key.item,
			ItemName:          entries[0].ItemName,
			ItemIDs:           itemIDs,
			OrderIDs:          orderIDs,
			TotalQuantity:     total,
			RecommendedFireAt: first.Add(window),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].StationCode != candidates[j].StationCode {
			return candidates[i].StationCode < candidates[j].StationCode
		}
		return candidates[i].RecommendedFireAt.Before(candidates[j].RecommendedFireAt)
	})
	return candidates
}
