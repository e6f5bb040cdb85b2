package predictions

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/api/middleware"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/internal/ingest"
	"github.com/anoixa/image-predict/internal/prediction"
	"github.com/anoixa/image-predict/utils"
	"github.com/gin-gonic/gin"
)

type submitRequestBody struct {
	URL string `json:"url"`
}

// Submit 上传图片或提交远程 URL 并返回分类结果
// POST /api/v1/predictions
func (h *Handler) Submit(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.RespondError(c, http.StatusUnauthorized, "Invalid user session")
		return
	}

	user, err := h.accountsRepo.WithContext(c.Request.Context()).GetUserByID(userID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			common.RespondError(c, http.StatusUnauthorized, "Invalid user session")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, prediction.MsgProcessing)
		return
	}

	src, cleanup, err := readSource(c)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid form data")
		return
	}
	defer cleanup()

	record, err := h.service.Submit(c.Request.Context(), user, src)
	if err != nil {
		if msg := ingest.UserMessage(err); msg != "" {
			common.RespondError(c, http.StatusBadRequest, msg)
			return
		}
		if utils.IsClientDisconnect(err) {
			utils.LogIfDevf("[Prediction] Client went away: %v", err)
			c.Abort()
			return
		}
		if errors.Is(err, prediction.ErrImageNotFound) {
			common.RespondError(c, http.StatusInternalServerError, prediction.MsgImageNotFound)
			return
		}
		common.RespondError(c, http.StatusInternalServerError, prediction.MsgProcessing)
		return
	}

	common.RespondCreated(c, prediction.MsgSubmitted, h.toResponse(record))
}

// readSource 从 JSON 或表单中读取 url 与 image 字段
func readSource(c *gin.Context) (ingest.Source, func(), error) {
	nop := func() {}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body submitRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			return ingest.Source{}, nop, err
		}
		return ingest.Source{URL: strings.TrimSpace(body.URL)}, nop, nil
	}

	src := ingest.Source{URL: strings.TrimSpace(c.PostForm("url"))}

	fileHeader, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return src, nop, nil
	case err != nil:
		return src, nop, err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return src, nop, err
	}

	src.Filename = fileHeader.Filename
	src.Size = fileHeader.Size
	src.Reader = file
	return src, func() {
		if err := file.Close(); err != nil {
			log.Printf("[Prediction] Failed to close upload: %v", err)
		}
	}, nil
}
