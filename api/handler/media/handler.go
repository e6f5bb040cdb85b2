package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/storage"
	"github.com/anoixa/image-predict/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

const fetchTimeout = 30 * time.Second

// Handler 媒体文件处理器
type Handler struct {
	storage storage.Provider
	group   singleflight.Group
}

// NewHandler 创建媒体处理器
func NewHandler(store storage.Provider) *Handler {
	return &Handler{storage: store}
}

// Serve 读取存储中的图片
// GET /media/*path
func (h *Handler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("path"), "/")
	if key == "" || !storage.IsValidStoragePath(key) {
		common.RespondError(c, http.StatusBadRequest, "Invalid media path")
		return
	}

	data, err := h.load(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			common.RespondError(c, http.StatusNotFound, "File not found")
			return
		}
		if utils.IsContextCanceled(err) {
			c.Abort()
			return
		}
		log.Printf("[Media] Failed to read %s: %v", utils.SanitizeLogMessage(key), err)
		common.RespondError(c, http.StatusInternalServerError, "Failed to read file")
		return
	}

	c.Header("Content-Type", utils.ContentTypeByExtension(key))
	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, key, time.Time{}, bytes.NewReader(data))
}

// load 同一 key 的并发读取合并为一次
func (h *Handler) load(ctx context.Context, key string) ([]byte, error) {
	ch := h.group.DoChan(key, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		stream, err := h.storage.GetWithContext(readCtx, key)
		if err != nil {
			return nil, err
		}
		defer func() { _ = stream.Close() }()

		return io.ReadAll(stream)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
