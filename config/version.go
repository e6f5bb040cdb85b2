package config

import "fmt"

// 构建时通过 -ldflags "-X" 注入
var (
	Version    = "dev"
	CommitHash = ""
)

// IsProduction release 构建且带提交哈希
func IsProduction() bool {
	return Version == "release" && CommitHash != ""
}

// IsDevelopment 未注入版本号的本地构建
func IsDevelopment() bool {
	return Version == "dev"
}

// BuildString 形如 release (abc1234)
func BuildString() string {
	if CommitHash == "" {
		return Version
	}
	hash := CommitHash
	if len(hash) > 7 {
		hash = hash[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, hash)
}
