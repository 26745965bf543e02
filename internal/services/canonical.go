package services

import (
	"strings"
)

// Канонические статусы заказа
const (
	OrderStatusNew        = "new"
	OrderStatusAccepted   = "accepted"
	OrderStatusInPrep     = "in_prep"
	OrderStatusAssembling = "assembling"
	OrderStatusStaged     = "staged"
	OrderStatusHandoff    = "handoff"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusVoided     = "voided"
	OrderStatusRefunded   = "refunded"
)

// Канонические состояния позиции
const (
	ItemStateQueued    = "queued"
	ItemStateFiring    = "firing"
	ItemStateCooking   = "cooking"
	ItemStateHold      = "hold"
	ItemStateDelayed   = "delayed"
	ItemStateReady     = "ready"
	ItemStateRefired   = "refired"
	ItemStateCancelled = "cancelled"
	ItemStateCompleted = "completed"
)

// Алиасы статусов из старых клиентов и агрегаторов
var orderStatusAliases = map[string]string{
	"pending":     OrderStatusNew,
	"in_queue":    OrderStatusAccepted,
	"in_progress": OrderStatusInPrep,
	"ready":       OrderStatusStaged,
}

// Граф допустимых переходов статуса заказа
var orderTransitions = map[string][]string{
	OrderStatusNew:        {OrderStatusAccepted, OrderStatusCancelled},
	OrderStatusAccepted:   {OrderStatusInPrep, OrderStatusAssembling, OrderStatusCancelled},
	OrderStatusInPrep:     {OrderStatusAssembling, OrderStatusStaged, OrderStatusCancelled},
	OrderStatusAssembling: {OrderStatusStaged, OrderStatusHandoff, OrderStatusCancelled},
	OrderStatusStaged:     {OrderStatusHandoff, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusHandoff:    {OrderStatusCompleted, OrderStatusVoided},
	OrderStatusCompleted:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusVoided:     {},
	OrderStatusRefunded:   {},
}

// Граф допустимых переходов состояния позиции
var itemTransitions = map[string][]string{
	ItemStateQueued:    {ItemStateFiring, ItemStateCancelled, ItemStateDelayed},
	ItemStateFiring:    {ItemStateCooking, ItemStateHold, ItemStateCancelled},
	ItemStateCooking:   {ItemStateHold, ItemStateReady, ItemStateDelayed, ItemStateCancelled},
	ItemStateHold:      {ItemStateCooking, ItemStateReady, ItemStateCancelled},
	ItemStateDelayed:   {ItemStateCooking, ItemStateCancelled},
	ItemStateReady:     {ItemStateCompleted, ItemStateRefired},
	ItemStateRefired:   {ItemStateCooking, ItemStateHold},
	ItemStateCancelled: {},
	ItemStateCompleted: {},
}

// Терминальные статусы заказа. Completed терминален, хотя граф еще
// допускает переход в refunded: очередь и таймеры с ним уже не работают.
var orderTerminalStatuses = map[string]bool{
	OrderStatusCompleted: true,
	OrderStatusCancelled: true,
	OrderStatusVoided:    true,
	OrderStatusRefunded:  true,
}

// Активные состояния позиции, учитываются в загрузке станций
var itemActiveStates = map[string]bool{
	ItemStateQueued:  true,
	ItemStateFiring:  true,
	ItemStateCooking: true,
	ItemStateHold:    true,
	ItemStateDelayed: true,
	ItemStateRefired: true,
}

// CanonicalOrderStatus приводит статус заказа к каноническому виду.
// Неизвестные значения проходят как есть (после trim + lowercase),
// их отсечет проверка перехода.
func CanonicalOrderStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if canonical, ok := orderStatusAliases[s]; ok {
		return canonical
	}
	return s
}

// CanonicalItemState приводит состояние позиции к каноническому виду
func CanonicalItemState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

// IsKnownOrderStatus проверяет принадлежность статуса каноническому словарю
func IsKnownOrderStatus(status string) bool {
	_, ok := orderTransitions[status]
	return ok
}

// IsKnownItemState проверяет принадлежность состояния каноническому словарю
func IsKnownItemState(state string) bool {
	_, ok := itemTransitions[state]
	return ok
}

// CanTransitionOrder проверяет допустимость перехода статуса заказа
func CanTransitionOrder(from, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionItem проверяет допустимость перехода состояния позиции
func CanTransitionItem(from, to string) bool {
	for _, allowed := range itemTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus проверяет, является ли статус терминальным
func IsTerminalOrderStatus(status string) bool {
	return orderTerminalStatuses[status]
}

// IsTerminalItemState проверяет, является ли состояние позиции терминальным
func IsTerminalItemState(state string) bool {
	targets, ok := itemTransitions[state]
	return ok && len(targets) == 0
}

// IsActiveItemState активна ли позиция (занимает мощность станции)
func IsActiveItemState(state string) bool {
	return itemActiveStates[state]
}

// Цепочка фаз для авто-продвижения заказа
var autoAdvanceChain = []string{
	OrderStatusAccepted,
	OrderStatusInPrep,
	OrderStatusAssembling,
	OrderStatusStaged,
	OrderStatusHandoff,
	OrderStatusCompleted,
}

// NextAutoPhase возвращает следующую фазу цепочки авто-продвижения.
// Пустая строка означает, что дальше двигаться некуда.
func NextAutoPhase(status string) string {
	for i, phase := range autoAdvanceChain {
		if phase == status && i+1 < len(autoAdvanceChain) {
			return autoAdvanceChain[i+1]
		}
	}
	return ""
}

// Ранг приоритета для сортировки очередей (меньше = важнее)
var priorityRank = map[string]int{
	"vip":      0,
	"high":     1,
	"normal":   2,
	"medium":   2,
	"standard": 2,
	"low":      3,
}

// PriorityRank возвращает ранг приоритета, неизвестные значения идут как normal
func PriorityRank(priority string) int {
	if rank, ok := priorityRank[strings.ToLower(priority)]; ok {
		return rank
	}
	return 2
}
