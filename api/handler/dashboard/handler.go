package dashboard

import (
	"log"
	"net/http"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/internal/dashboard"
	"github.com/gin-gonic/gin"
)

// Handler 管理后台处理器
type Handler struct {
	svc *dashboard.Service
}

// NewHandler 创建新的 Dashboard 处理器
func NewHandler(svc *dashboard.Service) *Handler {
	return &Handler{
		svc: svc,
	}
}

// GetStats 获取 Dashboard 统计数据
// GET /api/v1/admin/dashboard
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.svc.GetStats(c.Request.Context())
	if err != nil {
		log.Printf("[Dashboard] Failed to compute stats: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to get dashboard stats")
		return
	}

	common.RespondSuccess(c, stats)
}

// SetupRoutes 注册 Dashboard 路由，auth 中间件按顺序执行
func (h *Handler) SetupRoutes(router *gin.RouterGroup, auth ...gin.HandlerFunc) {
	admin := router.Group("/admin")
	admin.Use(auth...)
	{
		admin.GET("/dashboard", h.GetStats)
	}
}
