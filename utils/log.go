package utils

import (
	"log"
	"strings"
	"unicode"

	"github.com/anoixa/image-predict/config"
)

// LogIfDev 仅在开发模式输出日志
func LogIfDev(msg string) {
	if config.IsDevelopment() || config.Get().Debug {
		log.Println(msg)
	}
}

// LogIfDevf 仅在开发模式输出格式化日志
func LogIfDevf(format string, args ...any) {
	if config.IsDevelopment() || config.Get().Debug {
		log.Printf(format, args...)
	}
}

func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func SanitizeLogUsername(username string) string {
	if len(username) > 50 {
		username = username[:50] + "..."
	}
	return SanitizeLogMessage(username)
}
