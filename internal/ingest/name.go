package ingest

import (
	"fmt"
	"strings"

	"github.com/anoixa/image-predict/utils"
)

// ImagePrefix 预测图片的存储前缀
const ImagePrefix = "images/"

// UniqueName 生成 images/<username>_<id>_<6位hex><ext>
func UniqueName(username string, userID uint, ext string) (string, error) {
	suffix, err := utils.RandomHex(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s_%d_%s%s", ImagePrefix, sanitizeName(username), userID, suffix, strings.ToLower(ext)), nil
}

// sanitizeName 只保留存储路径允许的字符
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
