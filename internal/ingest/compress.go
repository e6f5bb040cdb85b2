package ingest

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

// Format 输出编码
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
)

// Compressor 压缩并缩放图片
type Compressor interface {
	Compress(data []byte, format Format) ([]byte, error)
}

// VipsCompressor 基于 libvips 的实现
type VipsCompressor struct {
	MaxDimension int
	Quality      int
}

// NewVipsCompressor 创建压缩器
func NewVipsCompressor(maxDimension, quality int) *VipsCompressor {
	if maxDimension <= 0 {
		maxDimension = 800
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &VipsCompressor{MaxDimension: maxDimension, Quality: quality}
}

// Compress 等比缩小到 MaxDimension 见方以内，只缩不放
func (c *VipsCompressor) Compress(data []byte, format Format) ([]byte, error) {
	img, err := vips.NewThumbnailWithSizeFromBuffer(data, c.MaxDimension, c.MaxDimension, vips.InterestingNone, vips.SizeDown)
	if err != nil {
		return nil, fmt.Errorf("thumbnail from buffer: %w", err)
	}
	defer img.Close()

	if format == FormatPNG {
		params := vips.NewPngExportParams()
		params.StripMetadata = true
		out, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("export png: %w", err)
		}
		return out, nil
	}

	if img.HasAlpha() {
		if err := img.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, fmt.Errorf("flatten alpha: %w", err)
		}
	}

	params := vips.NewJpegExportParams()
	params.Quality = c.Quality
	params.StripMetadata = true
	out, _, err := img.ExportJpeg(params)
	if err != nil {
		return nil, fmt.Errorf("export jpeg: %w", err)
	}
	return out, nil
}
