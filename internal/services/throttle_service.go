package services

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"kitchenline/server/internal/models"
)

// Границы котировки готовности в минутах
const (
	MinQuoteMinutes = 6
	MaxQuoteMinutes = 90
)

// ThrottleService оценивает загрузку станций и котирует время готовности.
// Оценка рекомендательная, создание заказа она никогда не блокирует.
type ThrottleService struct {
	db               *gorm.DB
	baseQuoteMinutes int
}

// NewThrottleService создает сервис оценки загрузки
func NewThrottleService(db *gorm.DB, baseQuoteMinutes int) *ThrottleService {
	if baseQuoteMinutes <= 0 {
		baseQuoteMinutes = 12
	}
	return &ThrottleService{db: db, baseQuoteMinutes: baseQuoteMinutes}
}

// QuoteLine входящая позиция для котировки
type QuoteLine struct {
	StationCode string
	StationName string
	Quantity    int
}

// QuoteResult итог котировки заказа
type QuoteResult struct {
	QuotedMinutes  int
	EtaSeconds     int
	PromisedTime   time.Time
	IsThrottled    bool
	ThrottleReason string
}

// StationWIP считает активные позиции по станциям свежим запросом в БД.
// Никаких кэшей и внутрипроцессных счетчиков, только то, что реально в базе.
func (t *ThrottleService) StationWIP(tx *gorm.DB) (map[string]int, error) {
	if tx == nil {
		tx = t.db
	}

	type row struct {
		StationCode string
		Total       int
	}
	var rows []row
	err := tx.Model(&models.OrderItem{}).
		Select("station_code, COALESCE(SUM(quantity), 0) as total").
		Where("state IN ?", []string{
			ItemStateQueued, ItemStateFiring, ItemStateCooking,
			ItemStateHold, ItemStateDelayed, ItemStateRefired,
		}).
		Group("station_code").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute station WIP: %w", err)
	}

	wip := make(map[string]int, len(rows))
	for _, r := range rows {
		wip[r.StationCode] = r.Total
	}
	return wip, nil
}

// Quote котирует заказ: текущий WIP из БД плюс входящие позиции.
// Базой служит запрошенная вызывающим котировка, при нуле — базовая
// из конфига. Добавка за перегрузку идет поверх этой базы, поэтому
// перегруженный заказ всегда котируется дольше, чем просил вызывающий.
func (t *ThrottleService) Quote(tx *gorm.DB, requestedMinutes int, stations []models.KitchenStation, lines []QuoteLine, now time.Time) (QuoteResult, error) {
	base := t.baseQuoteMinutes
	if requestedMinutes > 0 {
		base = requestedMinutes
	}
	wip, err := t.StationWIP(tx)
	if err != nil {
		return QuoteResult{}, err
	}
	return ComputeQuote(base, stations, wip, lines, now), nil
}

// ComputeQuote чистая функция котировки.
// При перегрузке станции (utilization > 1) котировка растягивается на
// 2 минуты за каждую позицию сверх мощности плюс одну.
func ComputeQuote(baseMinutes int, stations []models.KitchenStation, wip map[string]int, lines []QuoteLine, now time.Time) QuoteResult {
	base := clampQuote(baseMinutes)
	recommended := base

	capacities := make(map[string]int, len(stations))
	names := make(map[string]string, len(stations))
	for _, s := range stations {
		capacity := s.Capacity
		if capacity < 1 {
			capacity = 1
		}
		capacities[s.Code] = capacity
		names[s.Code] = s.Name
	}

	// Входящие позиции добавляются к текущему WIP
	incoming := make(map[string]int)
	projected := make(map[string]int, len(wip))
	for code, total := range wip {
		projected[code] = total
	}
	for _, line := range lines {
		if line.StationCode == "" || line.Quantity <= 0 {
			continue
		}
		incoming[line.StationCode] += line.Quantity
		projected[line.StationCode] += line.Quantity
		if _, ok := names[line.StationCode]; !ok && line.StationName != "" {
			names[line.StationCode] = line.StationName
		}
	}

	var reasons []string
	for _, s := range stations {
		if incoming[s.Code] == 0 {
			continue
		}
		capacity := capacities[s.Code]
		total := projected[s.Code]
		utilization := float64(total) / float64(capacity)
		if utilization > 1 {
			name := names[s.Code]
			if name == "" {
				name = s.Code
			}
			reasons = append(reasons, fmt.Sprintf("%s at %d%% load", name, int(utilization*100)))
			extended := base + (total-capacity+1)*2
			if extended > recommended {
				recommended = extended
			}
		}
	}

	recommended = clampQuote(recommended)

	return QuoteResult{
		QuotedMinutes:  recommended,
		EtaSeconds:     recommended * 60,
		PromisedTime:   now.Add(time.Duration(recommended) * time.Minute),
		IsThrottled:    len(reasons) > 0,
		ThrottleReason: strings.Join(reasons, ", "),
	}
}

// ApplyCallerThrottle накладывает явные поля троттлинга вызывающего.
// Явная причина заменяет автоматическую, и тогда флаг берется только
// у вызывающего. Без причины флаг вызывающего лишь поднимает троттлинг.
func ApplyCallerThrottle(quote QuoteResult, reason string, flagged bool) QuoteResult {
	if reason = strings.TrimSpace(reason); reason != "" {
		quote.ThrottleReason = reason
		quote.IsThrottled = flagged
	} else if flagged {
		quote.IsThrottled = true
	}
	return quote
}

func clampQuote(minutes int) int {
	if minutes < MinQuoteMinutes {
		return MinQuoteMinutes
	}
	if minutes > MaxQuoteMinutes {
		return MaxQuoteMinutes
	}
	return minutes
}
