package utils

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// HashPassword 使用 bcrypt 对密码进行哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword 验证密码
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// ValidateUsername 验证用户名格式（3-50个字符，字母数字下划线）
func ValidateUsername(username string) bool {
	if len(username) < 3 || len(username) > 50 {
		return false
	}
	return usernamePattern.MatchString(username)
}

// ValidatePassword 验证密码强度（至少8个字符，bcrypt 只使用前72字节）
func ValidatePassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// ValidateEmail 验证邮箱格式，长度不超过 users.email 列宽
func ValidateEmail(email string) bool {
	return len(email) <= 100 && emailPattern.MatchString(email)
}
