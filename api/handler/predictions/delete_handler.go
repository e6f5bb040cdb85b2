package predictions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/api/middleware"
	"github.com/anoixa/image-predict/internal/prediction"
	"github.com/gin-gonic/gin"
)

// Delete 删除自己的预测及图片
// DELETE /api/v1/predictions/:id
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.RespondError(c, http.StatusUnauthorized, "Invalid user session")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		common.RespondError(c, http.StatusBadRequest, "Invalid prediction id")
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, uint(id)); err != nil {
		if errors.Is(err, prediction.ErrNotFound) {
			common.RespondError(c, http.StatusNotFound, "prediction not found")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, "Failed to delete the prediction due to an internal error.")
		return
	}

	common.RespondSuccessMessage(c, prediction.MsgDeleted, nil)
}
