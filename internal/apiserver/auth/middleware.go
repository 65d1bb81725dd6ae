package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"accounts-admin/internal/shared/model"
	"accounts-admin/internal/shared/storage"
)

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/api/v1/auth/register",
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
	"/health",
	"/metrics",
}

func isPublicRoute(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Authenticator 请求边界的认证门
//
// 令牌验证之外还会回查账户存活状态：账户被删除/失活后，
// 即使访问令牌在密码学意义上仍然有效也必须拒绝。
type Authenticator struct {
	store storage.AccountStore
	cfg   Config
}

// NewAuthenticator 创建认证门
func NewAuthenticator(store storage.AccountStore, cfg Config) *Authenticator {
	return &Authenticator{store: store, cfg: cfg}
}

// Authenticate 从 Authorization 头解析并验证身份
//
// 失败分两类：头缺失/格式错误 → ErrMissingToken；
// 令牌无效/过期/账户已失活 → ErrInvalidToken。
func (a *Authenticator) Authenticate(ctx context.Context, rawHeader string) (*Identity, error) {
	if rawHeader == "" {
		return nil, ErrMissingToken
	}
	parts := strings.SplitN(rawHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, ErrMissingToken
	}

	claims, err := ParseToken(a.cfg, parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != tokenTypeAccess {
		return nil, ErrInvalidToken
	}

	// 存活回查：令牌有效性不足以证明账户仍然可用
	acc, err := a.store.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if acc == nil || !acc.IsActive {
		return nil, ErrInvalidToken
	}

	return &Identity{
		AccountID: acc.ID,
		Email:     acc.Email,
		Role:      acc.Role,
	}, nil
}

// Middleware 创建 JWT 认证中间件
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 公开路由：直接放行
		if isPublicRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			switch err {
			case ErrMissingToken:
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
			case ErrInvalidToken:
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			default:
				log.Printf("[auth] authenticate error: %v", err)
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// OptionalAuthenticate 尽力解析身份，失败降级为匿名而非拒绝请求
func (a *Authenticator) OptionalAuthenticate(ctx context.Context, rawHeader string) *Identity {
	identity, err := a.Authenticate(ctx, rawHeader)
	if err != nil {
		return nil
	}
	return identity
}

// ============================================================================
// 授权判定（纯函数）
// ============================================================================

// Authorize 角色门：身份角色在允许列表内才放行
func Authorize(identity *Identity, allowedRoles ...model.Role) bool {
	if identity == nil {
		return false
	}
	for _, r := range allowedRoles {
		if identity.Role == r {
			return true
		}
	}
	return false
}

// AuthorizeOwnerOrRole 属主或角色门：资源属主直接放行，否则按角色判定
func AuthorizeOwnerOrRole(identity *Identity, resourceOwnerID string, allowedRoles ...model.Role) bool {
	if identity == nil {
		return false
	}
	if identity.AccountID == resourceOwnerID {
		return true
	}
	return Authorize(identity, allowedRoles...)
}

// RequireRoles 角色专属路由中间件
func RequireRoles(next http.HandlerFunc, roles ...model.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !Authorize(GetIdentity(r.Context()), roles...) {
			http.Error(w, `{"error":"insufficient role"}`, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
