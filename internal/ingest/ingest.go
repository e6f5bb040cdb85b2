package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anoixa/image-predict/storage"
	"github.com/anoixa/image-predict/utils"
	"github.com/anoixa/image-predict/utils/validator"
)

// allowedUploadExts 允许上传的扩展名
var allowedUploadExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".jfif": true,
}

// Options 摄取参数
type Options struct {
	MaxBytes     int64
	FetchTimeout time.Duration
}

// Source 图片来源，URL 优先
type Source struct {
	URL      string
	Filename string
	Size     int64
	Reader   io.Reader
}

// Owner 图片所属用户
type Owner struct {
	ID       uint
	Username string
}

// StoredImage 已落盘的图片
type StoredImage struct {
	Key  string
	Size int64
}

// Service 图片摄取服务：校验、抓取、压缩、存储
type Service struct {
	storage    storage.Provider
	compressor Compressor
	client     *http.Client
	maxBytes   int64
}

// NewService 创建摄取服务
func NewService(store storage.Provider, compressor Compressor, opts Options) *Service {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	return &Service{
		storage:    store,
		compressor: compressor,
		client:     &http.Client{Timeout: opts.FetchTimeout},
		maxBytes:   opts.MaxBytes,
	}
}

// Ingest 处理一次提交，返回存储键
func (s *Service) Ingest(ctx context.Context, owner Owner, src Source) (*StoredImage, error) {
	if rawURL := strings.TrimSpace(src.URL); rawURL != "" {
		return s.fromURL(ctx, owner, rawURL)
	}
	if src.Reader != nil {
		return s.fromUpload(ctx, owner, src)
	}
	return nil, invalid(ErrNoImage, "No image provided.")
}

// fromURL 抓取远程图片，统一存为 jpg
func (s *Service) fromURL(ctx context.Context, owner Owner, rawURL string) (*StoredImage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid(ErrSchemeNotAllowed, "Only HTTP or HTTPS URLs are allowed.")
	}

	data, err := s.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	out, err := s.compressor.Compress(data, FormatJPEG)
	if err != nil {
		utils.LogIfDevf("[Ingest] Failed to re-encode %s: %v", utils.SanitizeLogMessage(rawURL), err)
		return nil, invalid(ErrFetch, "Error fetching image: cannot decode image")
	}

	return s.store(ctx, owner, ".jpg", out)
}

func (s *Service) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, invalid(ErrFetch, "Error fetching image: "+err.Error())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, invalid(ErrFetch, "Error fetching image: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, invalid(ErrFetch, "Error fetching image: "+resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, invalid(ErrFetch, "Error fetching image: "+err.Error())
	}
	if int64(len(data)) > s.maxBytes {
		return nil, invalid(ErrFileTooLarge, s.tooLargeMsg())
	}
	if ok, _ := validator.IsImageBytes(data); !ok {
		return nil, invalid(ErrFetch, "Error fetching image: response is not an image")
	}
	return data, nil
}

// fromUpload 校验上传文件并压缩
func (s *Service) fromUpload(ctx context.Context, owner Owner, src Source) (*StoredImage, error) {
	if src.Size > s.maxBytes {
		return nil, invalid(ErrFileTooLarge, s.tooLargeMsg())
	}

	ext := utils.GetExtensionFromFilename(src.Filename)
	if !allowedUploadExts[ext] {
		return nil, invalid(ErrInvalidFormat, "Invalid file format. Only JPG, JPEG, and PNG are allowed.")
	}

	data, err := io.ReadAll(io.LimitReader(src.Reader, s.maxBytes+1))
	if err != nil {
		return nil, invalid(ErrProcessing, "Error processing uploaded image.")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, invalid(ErrFileTooLarge, s.tooLargeMsg())
	}

	ok, mimeType := validator.IsImageBytes(data)
	if !ok {
		return nil, invalid(ErrProcessing, "Error processing uploaded image.")
	}

	format := FormatJPEG
	if mimeType == "image/png" {
		format = FormatPNG
		ext = ".png"
	} else if ext == ".png" {
		ext = ".jpg"
	}

	out, err := s.compressor.Compress(data, format)
	if err != nil {
		log.Printf("[Ingest] Failed to compress upload %s: %v", utils.SanitizeLogMessage(src.Filename), err)
		return nil, invalid(ErrProcessing, "Error processing uploaded image.")
	}

	return s.store(ctx, owner, ext, out)
}

func (s *Service) store(ctx context.Context, owner Owner, ext string, data []byte) (*StoredImage, error) {
	key, err := UniqueName(owner.Username, owner.ID, ext)
	if err != nil {
		return nil, fmt.Errorf("generate image name: %w", err)
	}
	if err := s.storage.SaveWithContext(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save image %s: %w", key, err)
	}
	utils.LogIfDevf("[Ingest] Stored %s (%d bytes)", key, len(data))
	return &StoredImage{Key: key, Size: int64(len(data))}, nil
}

func (s *Service) tooLargeMsg() string {
	return fmt.Sprintf("File size exceeds %dMB limit.", s.maxBytes>>20)
}
