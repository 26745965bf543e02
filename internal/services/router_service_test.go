package services

import (
	"testing"

	"kitchenline/server/internal/models"
)

func testStations() []models.KitchenStation {
	return []models.KitchenStation{
		{Code: "expo", Name: "Expo / Pass", IsActive: true, IsExpo: true, SortOrder: 5},
		{Code: "grill", Name: "Grill", IsActive: true, SortOrder: 10},
		{Code: "fry", Name: "Fry", IsActive: true, SortOrder: 20},
		{Code: "salad", Name: "Salad", IsActive: true, SortOrder: 30},
		{Code: "dessert", Name: "Dessert", IsActive: true, SortOrder: 40},
		{Code: "bar", Name: "Beverage Bar", IsActive: true, SortOrder: 50},
	}
}

func TestRouteExplicitHint(t *testing.T) {
	r := NewRouterService()
	stations := testStations()

	got := r.Route(stations, "bar", "grill plates", "BBQ Ribs")
	if got == nil || got.Code != "bar" {
		t.Fatalf("явная подсказка должна выигрывать у ключевых слов, got %v", got)
	}

	// Подсказка на несуществующую станцию игнорируется
	got = r.Route(stations, "sushi", "grill plates", "BBQ Ribs")
	if got == nil || got.Code != "grill" {
		t.Fatalf("неизвестная подсказка должна падать на ключевые слова, got %v", got)
	}
}

func TestRouteKeywords(t *testing.T) {
	r := NewRouterService()
	stations := testStations()

	cases := []struct {
		category string
		name     string
		want     string
	}{
		{"Grill Plates", "Ribeye", "grill"},
		{"", "BBQ Chicken", "grill"},
		{"Fried Sides", "Onion Rings", "fry"},
		{"Sides", "Coleslaw", "fry"},
		{"", "French Fries", "fry"},
		{"Salads", "Caesar Salad", "salad"},
		{"Desserts", "Cheesecake", "dessert"},
		{"", "Chocolate Cake", "dessert"},
		{"Drinks", "Cola", "bar"},
		{"", "Orange Juice", "bar"},
		{"", "Iced Coffee", "bar"},
		{"Soups", "Miso Soup", "grill"},
		{"", "Ramen Noodles", "grill"},
	}
	for _, tc := range cases {
		got := r.Route(stations, "", tc.category, tc.name)
		if got == nil || got.Code != tc.want {
			t.Errorf("Route(category=%q, name=%q): got %v, want %s", tc.category, tc.name, got, tc.want)
		}
	}
}

func TestRouteExpoFallback(t *testing.T) {
	r := NewRouterService()

	got := r.Route(testStations(), "", "Mystery", "Surprise Box")
	if got == nil || got.Code != "expo" {
		t.Fatalf("без совпадений позиция должна идти на expo, got %v", got)
	}
}

func TestRouteAnyActiveFallback(t *testing.T) {
	r := NewRouterService()
	stations := []models.KitchenStation{
		{Code: "fry", Name: "Fry", IsActive: true, SortOrder: 20},
		{Code: "grill", Name: "Grill", IsActive: true, SortOrder: 10},
	}

	// Нет expo: берем активную станцию с минимальным sort_order
	got := r.Route(stations, "", "Mystery", "Surprise Box")
	if got == nil || got.Code != "grill" {
		t.Fatalf("без expo позиция должна идти на первую активную станцию, got %v", got)
	}
}

func TestRouteInactiveStationsIgnored(t *testing.T) {
	r := NewRouterService()
	stations := []models.KitchenStation{
		{Code: "grill", Name: "Grill", IsActive: false, SortOrder: 10},
		{Code: "fry", Name: "Fry", IsActive: true, SortOrder: 20},
	}

	// Ключевое слово ведет на grill, но он выключен
	got := r.Route(stations, "", "Grill Plates", "Ribeye")
	if got == nil || got.Code != "fry" {
		t.Fatalf("неактивная станция не должна получать работу, got %v", got)
	}

	// Подсказка на неактивную станцию тоже игнорируется
	got = r.Route(stations, "grill", "", "Ribeye")
	if got == nil || got.Code != "fry" {
		t.Fatalf("подсказка на неактивную станцию игнорируется, got %v", got)
	}

	if got := r.Route([]models.KitchenStation{}, "", "Grill", "Ribeye"); got != nil {
		t.Fatalf("без станций маршрутизация должна вернуть nil, got %v", got)
	}
}
