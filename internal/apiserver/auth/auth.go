// Package auth 账户认证核心：密码哈希、JWT 令牌管理、HTTP 中间件
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"accounts-admin/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const ctxKeyIdentity contextKey = "auth_identity"

// Identity 从 JWT 解析并经存活校验后的请求身份
type Identity struct {
	AccountID string
	Email     string
	Role      model.Role
}

// Config 认证配置
type Config struct {
	Secret          string        `yaml:"secret"`
	Issuer          string        `yaml:"issuer"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	BcryptCost      int           `yaml:"bcrypt_cost"`
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		Issuer:          "accounts-admin",
		AccessTokenTTL:  24 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		BcryptCost:      12,
	}
}

// ============================================================================
// 错误类型
// ============================================================================

var (
	// ErrInvalidCredentials 登录失败的统一错误
	// 故意不区分"账户不存在"与"密码错误"，防止账户枚举，不得细分
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidCurrentPassword 改密时旧密码校验失败
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")

	// ErrInvalidToken 令牌无效或过期（签名、过期、签发者不匹配统一归并）
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidRefreshToken 刷新令牌无效
	// 覆盖：签名/过期失败、已被新登录覆盖、已登出、账户失活
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrMissingToken Authorization 头缺失或格式错误
	ErrMissingToken = errors.New("missing or malformed authorization header")

	// ErrForbidden 角色或属主校验未通过
	ErrForbidden = errors.New("forbidden")

	// ErrHashing 哈希原语执行失败（如校验时哈希格式损坏）
	ErrHashing = errors.New("password hashing failed")
)

// ValidationError 输入校验错误，Field 指出出错字段
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码，cost 由配置决定
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(bytes), nil
}

// CheckPassword 验证密码
//
// bcrypt 比较自身是常数时间的；不匹配返回 (false, nil)，
// 哈希损坏等原语错误返回 ErrHashing。
func CheckPassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrHashing, err)
}

// ============================================================================
// JWT Token
// ============================================================================

// 令牌类型声明，防止刷新令牌被当作访问令牌使用（反之亦然）
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"` // "access" | "refresh"
}

// GenerateAccessToken 生成访问令牌（短期，携带身份与角色）
func GenerateAccessToken(cfg Config, accountID, email string, role model.Role) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.AccessTokenTTL)),
		},
		Email: email,
		Role:  string(role),
		Type:  tokenTypeAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// GenerateRefreshToken 生成刷新令牌（长期，只携带账户 ID）
//
// jti 保证同一秒内连续签发的令牌也互不相同，
// 否则"新登录覆盖旧令牌"会退化为空操作。
func GenerateRefreshToken(cfg Config, accountID string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.RefreshTokenTTL)),
		},
		Type: tokenTypeRefresh,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseToken 解析并验证 JWT
//
// 签名、过期、签发者不匹配一律返回 ErrInvalidToken，
// 调用方不得向终端用户区分具体原因。
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithIdentity 将认证身份注入 context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// GetIdentity 从 context 获取认证身份，未认证返回 nil
func GetIdentity(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(*Identity)
	return id
}
