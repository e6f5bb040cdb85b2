package validator

import (
	"net/http"
)

// sniffLen http.DetectContentType 最多读取的字节数
const sniffLen = 512

// allowedImageMimeTypes 可被解码的图片类型
var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// IsImageBytes 按内容嗅探判断是否为图片，返回识别出的 MIME 类型
func IsImageBytes(data []byte) (bool, string) {
	if len(data) == 0 {
		return false, ""
	}
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}

	mimeType := http.DetectContentType(data)
	if allowedImageMimeTypes[mimeType] {
		return true, mimeType
	}
	return false, ""
}
