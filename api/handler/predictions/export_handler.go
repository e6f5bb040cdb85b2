package predictions

import (
	"bytes"
	"errors"
	"log"
	"net/http"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/api/middleware"
	"github.com/anoixa/image-predict/internal/report"
	"github.com/gin-gonic/gin"
)

const noDataBody = "No data available"

// Export 导出预测历史为 PDF
// GET /api/v1/predictions/export
func (h *Handler) Export(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.RespondError(c, http.StatusUnauthorized, "Invalid user session")
		return
	}

	list, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[Export] Failed to load history for user %d: %v", userID, err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to export prediction history")
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(c.Request.Context(), &buf, list); err != nil {
		if errors.Is(err, report.ErrNoData) {
			c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(noDataBody))
			return
		}
		log.Printf("[Export] Failed to render PDF for user %d: %v", userID, err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to export prediction history")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+report.Filename)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
