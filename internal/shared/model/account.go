// Package model 定义核心数据模型
//
// Account 是持久化文档，AccountView 是对外投影。
// 严禁直接序列化 Account 返回给客户端：PasswordHash 和 RefreshToken
// 只存在于持久化层，对外一律通过 ToView() 投影。
package model

import (
	"regexp"
	"strings"
	"time"
)

// Role 账户角色（封闭枚举）
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ValidRole 校验角色是否为合法枚举值
func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// Account 账户文档
//
// RefreshToken 为当前唯一有效的刷新令牌（单会话设计）：
// 登录/注册时无条件覆盖旧值，登出/删除时清空。
type Account struct {
	ID           string     `json:"id" bson:"_id"`
	Username     string     `json:"username" bson:"username"`
	Email        string     `json:"email" bson:"email"`
	PasswordHash string     `json:"-" bson:"password_hash"` // never expose in JSON
	Role         Role       `json:"role" bson:"role"`
	IsActive     bool       `json:"is_active" bson:"is_active"`
	FirstName    string     `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty" bson:"last_name,omitempty"`
	RefreshToken string     `json:"-" bson:"refresh_token,omitempty"` // never expose in JSON
	LastLogin    *time.Time `json:"last_login,omitempty" bson:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updated_at"`
}

// AccountView 对外投影
//
// 显式字段拷贝而非字段删除，保证新增敏感字段不会意外泄漏。
type AccountView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ToView 生成对外投影
func (a *Account) ToView() *AccountView {
	return &AccountView{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		IsActive:  a.IsActive,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		LastLogin: a.LastLogin,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// ============================================================================
// 字段校验
// ============================================================================

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// MinPasswordLength 密码最小长度
const MinPasswordLength = 8

// ValidUsername 用户名：3-30 位字母、数字、下划线
func ValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// ValidEmail 校验邮箱格式
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizeEmail 邮箱归一化（小写、去空白）
// 唯一性按归一化后的值判断
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidPassword 密码长度校验
func ValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}
