package auth

import (
	"context"
	"errors"
	"testing"

	"accounts-admin/internal/shared/model"
	"accounts-admin/internal/shared/storage/memstore"
)

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		// 公开路由
		{"register", "/api/v1/auth/register", true},
		{"login", "/api/v1/auth/login", true},
		{"refresh", "/api/v1/auth/refresh", true},
		{"health", "/health", true},
		{"metrics", "/metrics", true},

		// 需要 JWT 的路由
		{"me", "/api/v1/auth/me", false},
		{"logout", "/api/v1/auth/logout", false},
		{"password", "/api/v1/auth/password", false},
		{"accounts list", "/api/v1/accounts", false},
		{"account by id", "/api/v1/accounts/acc-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPublicRoute(tt.path); got != tt.expected {
				t.Errorf("isPublicRoute(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func testAuthenticator(t *testing.T) (*Authenticator, *Service, *memstore.Store) {
	t.Helper()
	store := memstore.NewStore()
	cfg := testConfig()
	return NewAuthenticator(store, cfg), NewService(store, cfg), store
}

func TestAuthenticate(t *testing.T) {
	a, svc, _ := testAuthenticator(t)
	ctx := context.Background()

	result := register(t, svc, "alice", "alice@example.com", "password123")

	// 正常通过
	identity, err := a.Authenticate(ctx, "Bearer "+result.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.AccountID != result.Account.ID {
		t.Errorf("AccountID = %q, want %q", identity.AccountID, result.Account.ID)
	}
	if identity.Role != model.RoleStudent {
		t.Errorf("Role = %q, want student", identity.Role)
	}

	// bearer 大小写不敏感
	if _, err := a.Authenticate(ctx, "bearer "+result.AccessToken); err != nil {
		t.Errorf("lowercase bearer rejected: %v", err)
	}
}

func TestAuthenticateHeaderErrors(t *testing.T) {
	a, _, _ := testAuthenticator(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no scheme", "some-token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Authenticate(ctx, tt.header); !errors.Is(err, ErrMissingToken) {
				t.Errorf("err = %v, want ErrMissingToken", err)
			}
		})
	}
}

func TestAuthenticateTokenErrors(t *testing.T) {
	a, svc, _ := testAuthenticator(t)
	ctx := context.Background()

	result := register(t, svc, "alice", "alice@example.com", "password123")

	// 垃圾令牌
	if _, err := a.Authenticate(ctx, "Bearer not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token err = %v, want ErrInvalidToken", err)
	}

	// 刷新令牌不能用作访问令牌
	if _, err := a.Authenticate(ctx, "Bearer "+result.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh-as-access err = %v, want ErrInvalidToken", err)
	}
}

// 存活回查：账户删除后，密码学上仍有效的访问令牌必须被拒绝
func TestAuthenticateRejectsDeletedAccount(t *testing.T) {
	a, svc, _ := testAuthenticator(t)
	ctx := context.Background()

	result := register(t, svc, "alice", "alice@example.com", "password123")

	if _, err := a.Authenticate(ctx, "Bearer "+result.AccessToken); err != nil {
		t.Fatalf("Authenticate before delete: %v", err)
	}

	if err := svc.DeleteAccount(ctx, result.Account.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if _, err := a.Authenticate(ctx, "Bearer "+result.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("deleted account token err = %v, want ErrInvalidToken", err)
	}
}

func TestOptionalAuthenticateDegradesToAnonymous(t *testing.T) {
	a, svc, _ := testAuthenticator(t)
	ctx := context.Background()

	if id := a.OptionalAuthenticate(ctx, ""); id != nil {
		t.Errorf("anonymous identity = %+v, want nil", id)
	}
	if id := a.OptionalAuthenticate(ctx, "Bearer garbage"); id != nil {
		t.Errorf("bad-token identity = %+v, want nil", id)
	}

	result := register(t, svc, "alice", "alice@example.com", "password123")
	if id := a.OptionalAuthenticate(ctx, "Bearer "+result.AccessToken); id == nil {
		t.Error("valid token identity = nil")
	}
}

func TestAuthorize(t *testing.T) {
	student := &Identity{AccountID: "s1", Role: model.RoleStudent}
	admin := &Identity{AccountID: "a1", Role: model.RoleAdmin}

	tests := []struct {
		name     string
		identity *Identity
		roles    []model.Role
		expected bool
	}{
		{"admin allowed", admin, []model.Role{model.RoleAdmin}, true},
		{"student denied admin route", student, []model.Role{model.RoleAdmin}, false},
		{"student allowed multi-role", student, []model.Role{model.RoleAdmin, model.RoleStudent}, true},
		{"nil identity denied", nil, []model.Role{model.RoleAdmin}, false},
		{"empty role list denies", admin, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.identity, tt.roles...); got != tt.expected {
				t.Errorf("Authorize = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAuthorizeOwnerOrRole(t *testing.T) {
	student := &Identity{AccountID: "s1", Role: model.RoleStudent}
	admin := &Identity{AccountID: "a1", Role: model.RoleAdmin}

	// 属主直接放行
	if !AuthorizeOwnerOrRole(student, "s1", model.RoleAdmin) {
		t.Error("owner denied")
	}
	// 非属主但角色满足
	if !AuthorizeOwnerOrRole(admin, "s1", model.RoleAdmin) {
		t.Error("admin denied on foreign resource")
	}
	// 非属主且角色不满足
	if AuthorizeOwnerOrRole(student, "s2", model.RoleAdmin) {
		t.Error("student allowed on foreign resource")
	}
	if AuthorizeOwnerOrRole(nil, "s1", model.RoleAdmin) {
		t.Error("nil identity allowed")
	}
}
