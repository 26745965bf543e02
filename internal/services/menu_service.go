package services

import (
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"kitchenline/server/internal/models"
	"kitchenline/server/internal/utils"
)

const MenuUpdateChannel = "menu:update" // Канал для Pub/Sub обновлений меню

// MenuService управляет загрузкой и кэшированием меню из БД.
// Для оркестратора очереди это справочник только для чтения.
type MenuService struct {
	db             *gorm.DB
	redisUtil      *utils.RedisClient // Redis для Pub/Sub
	mu             sync.RWMutex
	items          map[string]models.MenuItem
	lastUpdate     time.Time
	updateInterval time.Duration
	stopPubSub     chan struct{}
}

// NewMenuService создает новый сервис меню
func NewMenuService(db *gorm.DB, redisUtil *utils.RedisClient, reloadInterval time.Duration) *MenuService {
	if reloadInterval <= 0 {
		reloadInterval = 5 * time.Minute
	}
	return &MenuService{
		db:             db,
		redisUtil:      redisUtil,
		items:          make(map[string]models.MenuItem),
		updateInterval: reloadInterval,
		stopPubSub:     make(chan struct{}),
	}
}

// LoadMenu загружает меню из БД и обновляет in-memory кэш
// Потокобезопасно: сначала строит новую мапу, потом атомарно заменяет
func (ms *MenuService) LoadMenu() error {
	var items []models.MenuItem
	if err := ms.db.Find(&items).Error; err != nil {
		return err
	}

	itemsMap := make(map[string]models.MenuItem, len(items))
	for _, item := range items {
		itemsMap[item.ID] = item
	}

	ms.mu.Lock()
	ms.items = itemsMap
	ms.lastUpdate = time.Now()
	ms.mu.Unlock()

	log.Printf("✅ Меню обновлено из БД: %d позиций", len(itemsMap))
	return nil
}

// Lookup возвращает позицию меню по ID
func (ms *MenuService) Lookup(menuItemID string) (models.MenuItem, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	item, ok := ms.items[menuItemID]
	return item, ok
}

// StartAutoReload запускает автоматическое обновление меню
// Использует Redis Pub/Sub для мгновенного обновления + таймер как fallback
func (ms *MenuService) StartAutoReload() {
	// 1. Redis Pub/Sub для мгновенного обновления
	if ms.redisUtil != nil {
		go ms.startPubSubListener()
		log.Println("📡 Redis Pub/Sub для меню запущен (мгновенное обновление)")
	}

	// 2. Таймер как fallback (на случай если Redis недоступен)
	go func() {
		ticker := time.NewTicker(ms.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := ms.LoadMenu(); err != nil {
					log.Printf("⚠️ Ошибка автообновления меню: %v", err)
				}
			case <-ms.stopPubSub:
				return
			}
		}
	}()
	log.Printf("🔄 Fallback автообновление меню запущено (каждые %v)", ms.updateInterval)
}

// startPubSubListener слушает Redis канал для мгновенного обновления меню
func (ms *MenuService) startPubSubListener() {
	if ms.redisUtil == nil {
		return
	}

	ch, closeFn := ms.redisUtil.Subscribe(MenuUpdateChannel)
	defer func() {
		if err := closeFn(); err != nil {
			log.Printf("⚠️ Ошибка закрытия Pub/Sub: %v", err)
		}
	}()

	log.Printf("👂 Слушаем канал Redis: %s", MenuUpdateChannel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				// Канал закрыт, пытаемся переподписаться
				log.Println("⚠️ Pub/Sub канал закрыт, переподписываемся...")
				ch, closeFn = ms.redisUtil.Subscribe(MenuUpdateChannel)
				continue
			}
			if msg != nil {
				log.Printf("🔔 Получено событие обновления меню из Redis: %s", msg.Payload)
				if err := ms.LoadMenu(); err != nil {
					log.Printf("⚠️ Ошибка обновления меню по Pub/Sub: %v", err)
				}
			}
		case <-ms.stopPubSub:
			log.Println("🛑 Остановка Pub/Sub listener для меню")
			return
		}
	}
}

// PublishUpdate публикует событие обновления меню в Redis (для админки)
func (ms *MenuService) PublishUpdate() error {
	if ms.redisUtil == nil {
		return nil // Если Redis нет, просто обновляем локально
	}
	return ms.redisUtil.Publish(MenuUpdateChannel, "now")
}

// Stop останавливает фоновые горутины
func (ms *MenuService) Stop() {
	close(ms.stopPubSub)
}

// GetLastUpdate возвращает время последнего обновления
func (ms *MenuService) GetLastUpdate() time.Time {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.lastUpdate
}
