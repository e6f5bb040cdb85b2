package utils

import (
	"path/filepath"
	"strings"
)

// extToMimeMap 媒体文件扩展名到 MIME 类型
var extToMimeMap = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jfif": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// ContentTypeByExtension 根据文件名返回 MIME 类型，未知类型返回 application/octet-stream
func ContentTypeByExtension(filename string) string {
	if mimeType, ok := extToMimeMap[GetExtensionFromFilename(filename)]; ok {
		return mimeType
	}
	return "application/octet-stream"
}

// GetExtensionFromFilename 从文件名获取扩展名（小写）
func GetExtensionFromFilename(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
