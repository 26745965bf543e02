package main

import (
	"log"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"kitchenline/server/internal/api"
	"kitchenline/server/internal/config"
	"kitchenline/server/internal/database"
	"kitchenline/server/internal/models"
	"kitchenline/server/internal/services"
	"kitchenline/server/internal/utils"
)

func main() {
	// Загружаем переменные окружения из .env файла (если существует)
	// Игнорируем ошибку, если файл не найден (для production окружений)
	if err := godotenv.Load(); err != nil {
		log.Printf("ℹ️ .env файл не найден, используем переменные окружения системы")
	} else {
		log.Printf("✅ Переменные окружения загружены из .env файла")
	}

	// Загрузка конфигурации
	cfg := config.Load()

	// Логируем наличие DATABASE_URL (без пароля)
	if cfg.DatabaseURL != "" {
		safeURL := cfg.DatabaseURL
		if idx := strings.Index(safeURL, "@"); idx > 0 {
			if schemeIdx := strings.Index(safeURL, "://"); schemeIdx > 0 {
				safeURL = safeURL[:schemeIdx+3] + "***@" + safeURL[idx+1:]
			}
		}
		log.Printf("📋 DATABASE_URL установлен: %s", safeURL)
	}

	// Подключение к PostgreSQL (без БД оркестратор работать не может)
	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ PostgreSQL connection failed: %v", err)
	}
	defer database.ClosePostgres(db)

	// Выполняем миграции и сидим станции по умолчанию
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// Подключение к Redis (с поддержкой Sentinel)
	redisClient, err := database.ConnectRedis(
		cfg.RedisURL,
		cfg.RedisSentinelAddrs,
		cfg.RedisMasterName,
	)
	var redisUtil *utils.RedisClient
	if err != nil {
		log.Printf("⚠️ Redis connection failed: %v (continuing without Redis)", err)
	} else {
		defer database.CloseRedis(redisClient)
		redisUtil = utils.NewRedisClient(redisClient)
	}

	// Сервисы
	menuService := services.NewMenuService(db, redisUtil, time.Duration(cfg.MenuReloadSeconds)*time.Second)
	if err := menuService.LoadMenu(); err != nil {
		log.Printf("⚠️ Не удалось загрузить меню при старте: %v", err)
	}
	menuService.StartAutoReload()

	routerService := services.NewRouterService()
	throttleService := services.NewThrottleService(db, cfg.BaseQuoteMinutes)
	inventoryService := services.NewInventoryService(db)
	auditService := services.NewAuditService(db)
	batchService := services.NewBatchService()

	orderService := services.NewOrderService(db, menuService, routerService, throttleService, inventoryService, auditService)
	queueService := services.NewQueueService(db, batchService)
	autoFlowService := services.NewAutoFlowService(db, orderService)

	// WebSocket хаб для экранов кухни
	go api.QueueHub.Run()

	// Издатель событий: Kafka + WebSocket
	publisher := api.NewEventsPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, api.QueueHub)
	defer publisher.Close()
	orderService.SetPublisher(publisher)

	// Зеркало событий из Kafka в локальный хаб (для развертывания в несколько реплик)
	if mirror := api.NewKafkaMirrorConsumer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, api.QueueHub); mirror != nil {
		mirror.Start()
		defer mirror.Stop()
	}

	// Фоновое авто-продвижение заказов по фазам
	autoFlowService.Start(time.Duration(cfg.AutoAdvanceSweepSeconds)*time.Second, cfg.AutoAdvanceSweepMax)
	defer autoFlowService.Stop()

	// Отключаем логи gin для скорости
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Health check endpoint (должен быть до CORS для Railway)
	r.GET("/api/v1/health", func(c *gin.Context) {
		sqlDB, dbErr := db.DB()
		dbStatus := "ok"
		if dbErr != nil || sqlDB.Ping() != nil {
			dbStatus = "down"
		}
		redisStatus := "disabled"
		if redisUtil != nil {
			redisStatus = "ok"
			if _, err := redisUtil.Get("health:probe"); err != nil && err.Error() != "redis: nil" {
				redisStatus = "down"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"service":  "KitchenLine Server",
			"version":  "1.0.0",
			"postgres": dbStatus,
			"redis":    redisStatus,
		})
	})

	// Логирование всех запросов
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		log.Printf("🌐 %s %s - Status: %d - Latency: %v", method, path, status, latency)
	})

	// CORS для фронтенда
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.Use(api.ActorMiddleware(redisUtil))

	// Контроллеры
	orderController := api.NewOrderController(orderService)
	queueController := api.NewQueueController(queueService, autoFlowService, cfg.AutoAdvanceSweepMax)
	stationsController := api.NewStationsController(db)

	// Ограничение частоты мутирующих запросов
	writeLimit := api.RateLimitMiddleware(redisUtil, 60, time.Minute)

	apiGroup := r.Group("/api/v1")
	{
		ordersGroup := apiGroup.Group("/orders")
		{
			ordersGroup.POST("", writeLimit, orderController.CreateOrder)
			ordersGroup.GET("", orderController.ListOrders)
			ordersGroup.GET("/:id", orderController.GetOrder)
			ordersGroup.PATCH("/:id/status", writeLimit, orderController.SetStatus)
			ordersGroup.PATCH("/:id/items/:itemId", writeLimit, orderController.SetItemState)
			ordersGroup.POST("/:id/handoff/verify", writeLimit, orderController.VerifyHandoff)
			ordersGroup.GET("/:id/events", orderController.ListEvents)
			ordersGroup.PATCH("/:id/autoflow", writeLimit, orderController.SetAutoFlow)
		}

		queueGroup := apiGroup.Group("/queue")
		{
			queueGroup.GET("", queueController.View)
			queueGroup.POST("/sweep", queueController.Sweep)
		}

		stationsGroup := apiGroup.Group("/stations")
		{
			stationsGroup.GET("", stationsController.List)
			stationsGroup.POST("", writeLimit, stationsController.Create)
			stationsGroup.PATCH("/:id", writeLimit, stationsController.Update)
		}

		// Принудительная перезагрузка меню с оповещением других реплик
		apiGroup.POST("/menu/reload", writeLimit, func(c *gin.Context) {
			if err := menuService.LoadMenu(); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reload menu"})
				return
			}
			if err := menuService.PublishUpdate(); err != nil {
				log.Printf("⚠️ Не удалось оповестить другие реплики об обновлении меню: %v", err)
			}
			c.JSON(http.StatusOK, gin.H{
				"status":      "reloaded",
				"last_update": menuService.GetLastUpdate().Format(time.RFC3339),
			})
		})
	}

	// WebSocket для экранов кухни
	r.GET("/ws/queue", api.ServeWS)

	// Периодическое логирование статистики памяти
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			logMemoryStats()
		}
	}()

	port := cfg.ServerPort
	log.Printf("🚀 Server starting on port %s", port)
	log.Printf("📡 API доступен на http://0.0.0.0:%s/api/v1", port)
	if err := r.Run("0.0.0.0:" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// logMemoryStats логирует текущую статистику использования памяти
func logMemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	heapAllocMB := float64(m.HeapAlloc) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024
	numGoroutines := runtime.NumGoroutine()

	log.Printf("💾 Memory Stats: HeapAlloc=%.2f MB, Sys=%.2f MB, GC=%d, Goroutines=%d",
		heapAllocMB, sysMB, m.NumGC, numGoroutines)

	if numGoroutines > 100 {
		log.Printf("⚠️ WARNING: High number of goroutines detected: %d (possible goroutine leak)", numGoroutines)
	}
}
