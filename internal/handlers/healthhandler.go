package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/storage"
	"github.com/justsurfingit/jobtrackr/internal/utils"
)

type HealthHandler struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, Redis: rdb}
}

// Health pings the database and, when configured, Redis.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true

	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		checks["database"] = "down"
		healthy = false
	}
	if h.Redis != nil {
		checks["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, utils.APIResponse{
			Success: false,
			Data:    checks,
			Error:   &utils.ErrorInfo{Type: "service_unavailable", Message: "dependency check failed"},
		})
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", checks)
}

type FileHandler struct {
	Storage *storage.Store
}

func NewFileHandler(st *storage.Store) *FileHandler {
	return &FileHandler{Storage: st}
}

// Serve is GET /files/:bucket/*key.
func (h *FileHandler) Serve(c *gin.Context) {
	key := c.Param("key")
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	f, err := h.Storage.Open(c.Param("bucket"), key)
	if err != nil {
		// Unknown buckets and malformed keys look the same as missing files.
		utils.ErrorResponse(c, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
