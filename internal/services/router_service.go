package services

import (
	"sort"
	"strings"

	"kitchenline/server/internal/models"
)

// stationKeyword правило маршрутизации: подстрока -> код станции.
// Порядок важен, первое совпадение выигрывает.
type stationKeyword struct {
	keyword string
	station string
}

var categoryStationKeywords = []stationKeyword{
	{"grill", "grill"},
	{"bbq", "grill"},
	{"barbecue", "grill"},
	{"fried", "fry"},
	{"fries", "fry"},
	{"fry", "fry"},
	{"salad", "salad"},
	{"sides", "fry"},
	{"dessert", "dessert"},
	{"cake", "dessert"},
	{"sweet", "dessert"},
	{"drink", "bar"},
	{"beverage", "bar"},
	{"juice", "bar"},
	{"coffee", "bar"},
	{"tea", "bar"},
	{"soup", "grill"},
	{"noodle", "grill"},
}

// RouterService распределяет позиции заказа по станциям
type RouterService struct{}

// NewRouterService создает сервис маршрутизации
func NewRouterService() *RouterService {
	return &RouterService{}
}

// Route подбирает станцию для позиции. Приоритет:
// 1. Явная подсказка (hint), если она указывает на активную станцию.
// 2. Таблица ключевых слов по категории, затем по названию.
// 3. Expo станция.
// 4. Любая активная станция (по sort_order).
// Позиция никогда не остается без станции, пока есть хоть одна активная.
func (r *RouterService) Route(stations []models.KitchenStation, hint, category, name string) *models.KitchenStation {
	byCode := make(map[string]*models.KitchenStation, len(stations))
	active := make([]*models.KitchenStation, 0, len(stations))
	for i := range stations {
		s := &stations[i]
		if !s.IsActive {
			continue
		}
		byCode[s.Code] = s
		active = append(active, s)
	}
	if len(active) == 0 {
		return nil
	}

	if hint != "" {
		if s, ok := byCode[strings.ToLower(strings.TrimSpace(hint))]; ok {
			return s
		}
	}

	categoryLower := strings.ToLower(category)
	nameLower := strings.ToLower(name)
	for _, rule := range categoryStationKeywords {
		if strings.Contains(categoryLower, rule.keyword) || strings.Contains(nameLower, rule.keyword) {
			if s, ok := byCode[rule.station]; ok {
				return s
			}
		}
	}

	for _, s := range active {
		if s.IsExpo {
			return s
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})
	return active[0]
}
