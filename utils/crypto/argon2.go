package cryptopackage

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id 参数
const (
	argon2Memory      uint32 = 64 * 1024 // KiB
	argon2Iterations  uint32 = 2
	argon2Parallelism uint8  = 4
	argon2SaltLength  uint32 = 16
	argon2KeyLength   uint32 = 32
)

var ErrInvalidHash = errors.New("invalid argon2id hash")

// params 编码在哈希串中的成本参数
type params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// GenerateFromPassword 使用 Argon2id 哈希密码
// 格式: $argon2id$v=19$m=65536,t=2,p=4$<salt>$<hash>
func GenerateFromPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Iterations, argon2Memory, argon2Parallelism, argon2KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Iterations, argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// ComparePasswordAndHash 比较明文密码和 Argon2id 哈希值
func ComparePasswordAndHash(password, encodedHash string) (bool, error) {
	p, salt, hash, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, p.iterations, p.memory, p.parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}

// NeedsRehash 参数与当前配置不一致时返回 true
func NeedsRehash(encodedHash string) bool {
	p, _, hash, err := decodeHash(encodedHash)
	if err != nil {
		return true
	}
	return p.memory != argon2Memory || p.iterations != argon2Iterations ||
		p.parallelism != argon2Parallelism || uint32(len(hash)) != argon2KeyLength
}

func decodeHash(encodedHash string) (params, []byte, []byte, error) {
	var p params

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("%w: unexpected layout", ErrInvalidHash)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: cost parameters: %v", ErrInvalidHash, err)
	}
	p.parallelism = uint8(parallelism)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: hash: %v", ErrInvalidHash, err)
	}
	return p, salt, hash, nil
}

// HashToken 刷新令牌与重置令牌落库前做 SHA-256
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
