package predictions

import (
	"log"
	"net/http"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/api/middleware"
	"github.com/gin-gonic/gin"
)

// List 当前用户的预测历史，最新在前
// GET /api/v1/predictions
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.RespondError(c, http.StatusUnauthorized, "Invalid user session")
		return
	}

	list, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[Prediction] Failed to list history for user %d: %v", userID, err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to load prediction history")
		return
	}

	items := make([]predictionResponse, 0, len(list))
	for _, p := range list {
		items = append(items, h.toResponse(p))
	}

	common.RespondSuccess(c, gin.H{
		"total":       len(items),
		"predictions": items,
	})
}
