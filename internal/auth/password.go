package auth

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxSimilarity     = 0.7
	minUsernameLength = 3
	maxUsernameLength = 150
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_-]+$`)

// ValidationError 表单校验失败，Msg 面向用户
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidationError 判断是否为表单校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateUsername 用户名 3-150 个字符，只允许字母数字和 @.+-_
func ValidateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return &ValidationError{Field: "username", Msg: "Username must be between 3 and 150 characters."}
	}
	if !usernamePattern.MatchString(username) {
		return &ValidationError{Field: "username", Msg: "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."}
	}
	return nil
}

// ValidatePassword 密码强度校验
func ValidatePassword(password, username, email string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return &ValidationError{Field: "password", Msg: "This password is too short. It must contain at least 8 characters."}
	}

	if isAllDigits(password) {
		return &ValidationError{Field: "password", Msg: "This password is entirely numeric."}
	}

	lower := strings.ToLower(password)
	for _, attr := range []string{username, email} {
		if tooSimilar(lower, strings.ToLower(attr)) {
			return &ValidationError{Field: "password", Msg: "The password is too similar to the username or email."}
		}
	}

	if commonPasswords[lower] {
		return &ValidationError{Field: "password", Msg: "This password is too common."}
	}

	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// tooSimilar 与属性整体或其拆分片段的相似度达到阈值
func tooSimilar(password, attr string) bool {
	if attr == "" {
		return false
	}
	parts := append([]string{attr}, strings.FieldsFunc(attr, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})...)
	for _, part := range parts {
		if part != "" && similarity(password, part) >= maxSimilarity {
			return true
		}
	}
	return false
}

// similarity Ratcliff/Obershelp 相似度 2*M/T
func similarity(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(a, b)) / float64(total)
}

func matchingChars(a, b string) int {
	i, j, n := longestCommonSubstring(a, b)
	if n == 0 {
		return 0
	}
	return n + matchingChars(a[:i], b[:j]) + matchingChars(a[i+n:], b[j+n:])
}

func longestCommonSubstring(a, b string) (int, int, int) {
	bestI, bestJ, bestN := 0, 0, 0
	prev := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestN {
					bestN = cur[j]
					bestI, bestJ = i-cur[j], j-cur[j]
				}
			}
		}
		prev = cur
	}
	return bestI, bestJ, bestN
}

var commonPasswords = map[string]bool{}

func init() {
	for _, p := range strings.Fields(commonPasswordList) {
		commonPasswords[p] = true
	}
}

const commonPasswordList = `
password password1 password123 passw0rd p@ssword p@ssw0rd 12345678 123456789
1234567890 qwertyuiop qwerty123 1q2w3e4r 1qaz2wsx zaq12wsx abcd1234 abc12345
iloveyou sunshine princess football baseball basketball superman batman
trustno1 welcome1 welcome123 letmein1 monkey123 dragon123 shadow123 master123
michael1 jennifer charlie1 computer internet whatever starwars qwertyui
asdfghjk asdfghjkl zxcvbnm1 changeme administrator admin123 admin1234
00000000 11111111 12341234 87654321 88888888 99999999 aaaaaaaa abcdefgh
secret123 freedom1 mustang1 jordan23 harley12 hunter12 ranger12 buster12
soccer12 hockey12 killer12 george12 summer12 winter12 autumn12 spring12
`
