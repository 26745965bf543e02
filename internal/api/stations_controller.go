package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kitchenline/server/internal/models"
)

// StationsController управление справочником станций
type StationsController struct {
	db *gorm.DB
}

// NewStationsController создает контроллер станций
func NewStationsController(db *gorm.DB) *StationsController {
	return &StationsController{db: db}
}

// List GET /api/v1/stations
func (sc *StationsController) List(c *gin.Context) {
	var stations []models.KitchenStation
	query := sc.db.Order("sort_order ASC")
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&stations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stations"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(stations))
	for i := range stations {
		payload = append(payload, stations[i].ToMap())
	}
	c.JSON(http.StatusOK, gin.H{"stations": payload})
}

type createStationRequest struct {
	Code                   string   `json:"code" binding:"required"`
	Name                   string   `json:"name" binding:"required"`
	Tags                   []string `json:"tags"`
	Capacity               int      `json:"capacity"`
	AutoBatchWindowSeconds int      `json:"auto_batch_window_seconds"`
	IsExpo                 bool     `json:"is_expo"`
	SortOrder              int      `json:"sort_order"`
}

// Create POST /api/v1/stations
func (sc *StationsController) Create(c *gin.Context) {
	var req createStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data", "details": err.Error()})
		return
	}

	code := strings.ToLower(strings.TrimSpace(req.Code))

	var existing models.KitchenStation
	err := sc.db.Where("code = ?", code).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "station with this code already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check station"})
		return
	}

	capacity := req.Capacity
	if capacity < 1 {
		capacity = 1
	}
	window := req.AutoBatchWindowSeconds
	if window <= 0 {
		window = 90
	}
	sortOrder := req.SortOrder
	if sortOrder == 0 {
		sortOrder = 100
	}

	station := models.KitchenStation{
		ID:                     uuid.New().String(),
		Code:                   code,
		Name:                   req.Name,
		Tags:                   models.StringList(req.Tags),
		Capacity:               capacity,
		AutoBatchWindowSeconds: window,
		IsActive:               true,
		IsExpo:                 req.IsExpo,
		SortOrder:              sortOrder,
	}
	if err := sc.db.Create(&station).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create station"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"station": station.ToMap()})
}

type updateStationRequest struct {
	Name                   *string  `json:"name"`
	Tags                   []string `json:"tags"`
	Capacity               *int     `json:"capacity"`
	AutoBatchWindowSeconds *int     `json:"auto_batch_window_seconds"`
	IsActive               *bool    `json:"is_active"`
	IsExpo                 *bool    `json:"is_expo"`
	SortOrder              *int     `json:"sort_order"`
}

// Update PATCH /api/v1/stations/:id
// Код станции неизменяемый, его менять нельзя.
func (sc *StationsController) Update(c *gin.Context) {
	var req updateStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data", "details": err.Error()})
		return
	}

	var station models.KitchenStation
	err := sc.db.Where("id = ?", c.Param("id")).First(&station).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "station not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load station"})
		return
	}

	if req.Name != nil {
		station.Name = *req.Name
	}
	if req.Tags != nil {
		station.Tags = models.StringList(req.Tags)
	}
	if req.Capacity != nil {
		capacity := *req.Capacity
		if capacity < 1 {
			capacity = 1
		}
		station.Capacity = capacity
	}
	if req.AutoBatchWindowSeconds != nil && *req.AutoBatchWindowSeconds > 0 {
		station.AutoBatchWindowSeconds = *req.AutoBatchWindowSeconds
	}
	if req.IsActive != nil {
		station.IsActive = *req.IsActive
	}
	if req.IsExpo != nil {
		station.IsExpo = *req.IsExpo
	}
	if req.SortOrder != nil {
		station.SortOrder = *req.SortOrder
	}

	if err := sc.db.Save(&station).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update station"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"station": station.ToMap()})
}
