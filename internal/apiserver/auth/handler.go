package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"accounts-admin/internal/apiserver/server"
	"accounts-admin/internal/shared/model"
	"accounts-admin/internal/shared/storage"
)

// Handler 账户 HTTP 处理器
type Handler struct {
	svc     *Service
	metrics *server.Metrics
}

// NewHandler 创建处理器，metrics 可为 nil（测试场景）
func NewHandler(svc *Service, metrics *server.Metrics) *Handler {
	return &Handler{svc: svc, metrics: metrics}
}

// RegisterRoutes 注册账户相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
	mux.HandleFunc("PUT /api/v1/auth/me", h.UpdateMe)
	mux.HandleFunc("PUT /api/v1/auth/password", h.ChangePassword)
	mux.HandleFunc("DELETE /api/v1/auth/me", h.DeleteMe)
	mux.HandleFunc("GET /api/v1/accounts", RequireRoles(h.ListAccounts, model.RoleAdmin))
	mux.HandleFunc("GET /api/v1/accounts/{id}", RequireRoles(h.GetAccount, model.RoleAdmin, model.RoleInstructor))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      model.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updateProfileRequest struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type authResponse struct {
	Account      *model.AccountView `json:"account"`
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token,omitempty"`
}

type listResponse struct {
	Accounts []*model.AccountView `json:"accounts"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Register(r.Context(), RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.metrics.RecordRegistration()
	writeJSON(w, http.StatusCreated, authResponse{
		Account:      result.Account,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// Login 用户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordLogin(false)
		h.writeServiceError(w, err)
		return
	}

	h.metrics.RecordLogin(true)
	writeJSON(w, http.StatusOK, authResponse{
		Account:      result.Account,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// Refresh 刷新访问令牌
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	accessToken, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.metrics.RecordRefresh(false)
		h.writeServiceError(w, err)
		return
	}

	h.metrics.RecordRefresh(true)
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": accessToken,
	})
}

// Logout 登出：吊销刷新令牌
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.svc.Logout(r.Context(), identity.AccountID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me 获取当前账户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	view, err := h.svc.GetProfile(r.Context(), identity.AccountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateMe 更新当前账户资料
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.svc.UpdateProfile(r.Context(), identity.AccountID, UpdateProfileInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ChangePassword 修改密码
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	if err := h.svc.ChangePassword(r.Context(), identity.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// DeleteMe 软删除当前账户
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), identity.AccountID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// ListAccounts 管理端账户列表
// 查询参数：page, limit, role, is_active
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("limit"))

	var filter storage.ListFilter
	if roleStr := q.Get("role"); roleStr != "" {
		role := model.Role(roleStr)
		if !model.ValidRole(role) {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		filter.Role = &role
	}
	if activeStr := q.Get("is_active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "is_active must be true or false")
			return
		}
		filter.IsActive = &active
	}

	result, err := h.svc.ListAccounts(r.Context(), filter, page, pageSize)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Accounts: result.Accounts,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// GetAccount 管理端按 ID 查询账户
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetAccountByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ============================================================================
// 错误映射 / 工具函数
// ============================================================================

// writeServiceError 将领域错误映射为 HTTP 状态码
// 生产环境不向客户端透出内部错误细节
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, storage.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, storage.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, ErrInvalidCredentials):
		h.metrics.RecordAuthFailure("credentials")
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, ErrInvalidRefreshToken):
		h.metrics.RecordAuthFailure("refresh_token")
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, ErrInvalidCurrentPassword):
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	default:
		log.Printf("[auth] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
