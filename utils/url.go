package utils

import (
	"net/url"
	"strings"
)

// MediaPrefix 媒体文件的 URL 前缀
const MediaPrefix = "/media/"

// BuildMediaURL 存储键对应的访问地址，baseURL 为空时返回相对路径
func BuildMediaURL(baseURL, key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + MediaPrefix + strings.Join(segments, "/")
}
