package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRoleValues(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleStudent, "student"},
		{RoleInstructor, "instructor"},
		{RoleAdmin, "admin"},
	}

	for _, tt := range tests {
		if string(tt.role) != tt.want {
			t.Errorf("Role = %v, want %v", tt.role, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []Role{RoleStudent, RoleInstructor, RoleAdmin} {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%q) = false, want true", r)
		}
	}
	if ValidRole("superuser") {
		t.Error("ValidRole(superuser) = true, want false")
	}
	if ValidRole("") {
		t.Error("ValidRole(empty) = true, want false")
	}
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		expected bool
	}{
		{"simple", "alice", true},
		{"with underscore", "alice_w", true},
		{"with digits", "user42", true},
		{"min length", "abc", true},
		{"max length", strings.Repeat("a", 30), true},
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 31), false},
		{"with dash", "alice-w", false},
		{"with space", "alice w", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidUsername(tt.username); got != tt.expected {
				t.Errorf("ValidUsername(%q) = %v, want %v", tt.username, got, tt.expected)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email    string
		expected bool
	}{
		{"alice@example.com", true},
		{"a.b+c@sub.example.org", true},
		{"no-at-sign", false},
		{"@example.com", false},
		{"alice@", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidEmail(tt.email); got != tt.expected {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.expected)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail = %q, want %q", got, "alice@example.com")
	}
}

// 敏感字段绝不能出现在 JSON 序列化结果中
func TestAccountJSONHidesSecrets(t *testing.T) {
	now := time.Now()
	acc := &Account{
		ID:           "acc-001",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$12$secret",
		Role:         RoleStudent,
		IsActive:     true,
		RefreshToken: "some.refresh.token",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	data, err := json.Marshal(acc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "secret") || strings.Contains(s, "password_hash") {
		t.Errorf("serialized account leaks password hash: %s", s)
	}
	if strings.Contains(s, "refresh") {
		t.Errorf("serialized account leaks refresh token: %s", s)
	}
}

func TestToView(t *testing.T) {
	now := time.Now()
	acc := &Account{
		ID:           "acc-001",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Role:         RoleInstructor,
		IsActive:     true,
		FirstName:    "Alice",
		RefreshToken: "tok",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	v := acc.ToView()
	if v.ID != acc.ID || v.Username != acc.Username || v.Email != acc.Email {
		t.Errorf("view identity fields mismatch: %+v", v)
	}
	if v.Role != RoleInstructor {
		t.Errorf("Role = %v, want %v", v.Role, RoleInstructor)
	}

	// 投影类型本身不含敏感字段，序列化结果必然干净
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal view: %v", err)
	}
	if strings.Contains(string(data), "hash") || strings.Contains(string(data), "tok") {
		t.Errorf("view leaks secrets: %s", data)
	}
}
