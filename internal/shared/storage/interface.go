// Package storage 提供存储层抽象
package storage

import (
	"context"
	"time"

	"accounts-admin/internal/shared/model"
)

// ListFilter 账户列表过滤条件
//
// nil 字段表示不过滤。
type ListFilter struct {
	Role     *model.Role
	IsActive *bool
}

// UpdatableFields 资料更新白名单
//
// 密码、邮箱、角色、刷新令牌禁止通过通用更新路径修改，
// 必须走各自的专用操作。
type UpdatableFields struct {
	FirstName *string
	LastName  *string
	Username  *string
}

// AccountStore 账户持久化接口
//
// 所有"安全关键"的写操作（刷新令牌覆盖/清除、软删除）必须由驱动
// 实现为单文档原子更新，不允许读-改-写。
type AccountStore interface {
	// CreateAccount 插入新账户，唯一键冲突返回 ErrDuplicate*
	CreateAccount(ctx context.Context, acc *model.Account) error

	// FindExisting 一次查询同时检测邮箱与用户名占用情况
	// 返回值含义：第一个 bool 为邮箱已存在，第二个为用户名已存在
	FindExisting(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)

	// GetAccountByEmail 按邮箱查找，不存在返回 (nil, nil)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)

	// GetAccountByID 按 ID 查找，不存在返回 (nil, nil)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)

	// UpdateAccount 更新白名单内的资料字段
	UpdateAccount(ctx context.Context, id string, fields UpdatableFields) (*model.Account, error)

	// UpdateAccountPassword 更新密码哈希
	UpdateAccountPassword(ctx context.Context, id, passwordHash string) error

	// SetRefreshToken 无条件覆盖存量刷新令牌（单会话：旧会话隐式失效）
	SetRefreshToken(ctx context.Context, id, token string) error

	// ClearRefreshToken 清除刷新令牌（登出）
	ClearRefreshToken(ctx context.Context, id string) error

	// TouchLastLogin 记录最近登录时间
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// SoftDeleteAccount 软删除：单次原子更新中置 is_active=false 并清除刷新令牌
	SoftDeleteAccount(ctx context.Context, id string) error

	// ListAccounts 分页列表，按创建时间倒序，返回总数
	ListAccounts(ctx context.Context, filter ListFilter, page, pageSize int) ([]*model.Account, int64, error)

	// Close 关闭底层连接
	Close() error
}
