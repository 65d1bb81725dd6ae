package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"accounts-admin/internal/shared/model"
	"accounts-admin/internal/shared/storage"
)

// Service 账户业务核心：凭据生命周期 + 会话生命周期
//
// 并发模型：每个请求独立执行，无进程内锁；
// 正确性依赖存储层的单文档原子更新与唯一索引。
type Service struct {
	store storage.AccountStore
	cfg   Config
}

// NewService 创建账户服务
func NewService(store storage.AccountStore, cfg Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// AuthResult 注册/登录的返回：账户视图 + 令牌对
type AuthResult struct {
	Account      *model.AccountView
	AccessToken  string
	RefreshToken string
}

// RegisterInput 注册入参
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      model.Role // 为空时默认 student
}

// UpdateProfileInput 资料更新入参（nil 表示不修改）
// 密码、邮箱、角色不走此路径
type UpdateProfileInput struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// dummyHash 用于登录时账户不存在的场景：仍然执行一次 bcrypt 比较，
// 使"账户不存在"与"密码错误"的耗时不可区分
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// ============================================================================
// 注册 / 登录 / 会话
// ============================================================================

// Register 注册新账户并建立会话
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if !model.ValidUsername(in.Username) {
		return nil, &ValidationError{Field: "username", Message: "must be 3-30 alphanumeric or underscore characters"}
	}
	email := model.NormalizeEmail(in.Email)
	if !model.ValidEmail(email) {
		return nil, &ValidationError{Field: "email", Message: "invalid email format"}
	}
	if !model.ValidPassword(in.Password) {
		return nil, &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", model.MinPasswordLength)}
	}
	role := in.Role
	if role == "" {
		role = model.RoleStudent
	}
	if !model.ValidRole(role) {
		return nil, &ValidationError{Field: "role", Message: "unknown role"}
	}

	// 一次查询同时检测两个唯一键，用于生成可区分的错误信息；
	// 并发竞态下的最终正确性由唯一索引兜底
	emailTaken, usernameTaken, err := s.store.FindExisting(ctx, email, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check existing account: %w", err)
	}
	if emailTaken {
		return nil, storage.ErrDuplicateEmail
	}
	if usernameTaken {
		return nil, storage.ErrDuplicateUsername
	}

	hash, err := HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	acc := &model.Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}

	result, err := s.startSession(ctx, acc)
	if err != nil {
		return nil, err
	}
	log.Printf("[auth] account registered: %s (%s)", acc.Email, acc.ID)
	return result, nil
}

// Login 验证凭据并建立会话
//
// 账户不存在、已失活、密码错误统一返回 ErrInvalidCredentials，
// 这是防枚举的安全控制，不得为可调试性拆分。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	acc, err := s.store.GetAccountByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if acc == nil || !acc.IsActive {
		// 等时伪比较，见 dummyHash
		_, _ = CheckPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}

	ok, err := CheckPassword(password, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.store.TouchLastLogin(ctx, acc.ID, now); err != nil {
		return nil, fmt.Errorf("touch last login: %w", err)
	}
	// 返回的视图必须反映本次登录时间，不能用触达前的快照
	acc.LastLogin = &now

	result, err := s.startSession(ctx, acc)
	if err != nil {
		return nil, err
	}
	log.Printf("[auth] login: %s", acc.Email)
	return result, nil
}

// startSession 签发令牌对并覆盖存量刷新令牌（单会话）
func (s *Service) startSession(ctx context.Context, acc *model.Account) (*AuthResult, error) {
	accessToken, err := GenerateAccessToken(s.cfg, acc.ID, acc.Email, acc.Role)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := GenerateRefreshToken(s.cfg, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.store.SetRefreshToken(ctx, acc.ID, refreshToken); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &AuthResult{
		Account:      acc.ToView(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh 用刷新令牌换取新的访问令牌
//
// 除密码学校验外还要求令牌与存储值逐字节一致且账户仍激活，
// 被新登录覆盖、已登出、伪造的令牌在此处统一失效。
// 刷新路径不轮换刷新令牌，只签发新的访问令牌。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := ParseToken(s.cfg, refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if claims.Type != tokenTypeRefresh {
		return "", ErrInvalidRefreshToken
	}

	acc, err := s.store.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if acc == nil || !acc.IsActive || acc.RefreshToken != refreshToken {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := GenerateAccessToken(s.cfg, acc.ID, acc.Email, acc.Role)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return accessToken, nil
}

// Logout 无条件清除刷新令牌，立即吊销会话
func (s *Service) Logout(ctx context.Context, accountID string) error {
	if err := s.store.ClearRefreshToken(ctx, accountID); err != nil {
		return err
	}
	log.Printf("[auth] logout: %s", accountID)
	return nil
}

// ============================================================================
// 资料 / 密码 / 删除
// ============================================================================

// GetProfile 获取账户视图
func (s *Service) GetProfile(ctx context.Context, accountID string) (*model.AccountView, error) {
	acc, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, storage.ErrNotFound
	}
	return acc.ToView(), nil
}

// UpdateProfile 更新资料字段（白名单）
func (s *Service) UpdateProfile(ctx context.Context, accountID string, in UpdateProfileInput) (*model.AccountView, error) {
	if in.Username != nil && !model.ValidUsername(*in.Username) {
		return nil, &ValidationError{Field: "username", Message: "must be 3-30 alphanumeric or underscore characters"}
	}

	acc, err := s.store.UpdateAccount(ctx, accountID, storage.UpdatableFields{
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return nil, err
	}
	return acc.ToView(), nil
}

// ChangePassword 修改密码：先验旧密码，再哈希并持久化新密码
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if !model.ValidPassword(next) {
		return &ValidationError{Field: "new_password", Message: fmt.Sprintf("must be at least %d characters", model.MinPasswordLength)}
	}

	acc, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return storage.ErrNotFound
	}

	ok, err := CheckPassword(current, acc.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}

	hash, err := HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdateAccountPassword(ctx, accountID, hash); err != nil {
		return err
	}
	log.Printf("[auth] password changed: %s", accountID)
	return nil
}

// DeleteAccount 软删除：失活并清除刷新令牌，本服务不做物理删除
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.store.SoftDeleteAccount(ctx, accountID); err != nil {
		return err
	}
	log.Printf("[auth] account deactivated: %s", accountID)
	return nil
}

// ============================================================================
// 管理端查询
// ============================================================================

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListResult 分页结果
type ListResult struct {
	Accounts []*model.AccountView
	Total    int64
	Page     int
	PageSize int
}

// ListAccounts 分页列出账户（管理端），按创建时间倒序
func (s *Service) ListAccounts(ctx context.Context, filter storage.ListFilter, page, pageSize int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	accounts, total, err := s.store.ListAccounts(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	views := make([]*model.AccountView, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, acc.ToView())
	}
	return &ListResult{Accounts: views, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetAccountByID 管理端按 ID 查询
func (s *Service) GetAccountByID(ctx context.Context, id string) (*model.AccountView, error) {
	return s.GetProfile(ctx, id)
}

// ============================================================================
// 管理员引导
// ============================================================================

// EnsureAdminAccount 确保管理员账户存在（启动时调用）
// 如果配置了 adminEmail 且数据库中不存在该账户，则自动创建
func EnsureAdminAccount(store storage.AccountStore, cfg Config, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	ctx := context.Background()
	email := model.NormalizeEmail(adminEmail)
	existing, err := store.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin account: %w", err)
	}
	if existing != nil {
		log.Printf("[auth] admin account already exists: %s (%s)", email, existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	acc := &model.Account{
		ID:           uuid.NewString(),
		Username:     "admin",
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) || errors.Is(err, storage.ErrDuplicateUsername) {
			// 并发启动时另一实例已创建
			return nil
		}
		return fmt.Errorf("create admin account: %w", err)
	}
	log.Printf("[auth] created admin account: %s (%s)", email, acc.ID)
	return nil
}
