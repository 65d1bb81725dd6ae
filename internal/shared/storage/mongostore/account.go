package mongostore

import (
	"context"
	"errors"
	"time"

	"accounts-admin/internal/shared/model"
	"accounts-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// AccountStore
// ============================================================================

func (s *Store) CreateAccount(ctx context.Context, acc *model.Account) error {
	return insertOne(ctx, s.col(ColAccounts), acc)
}

// FindExisting 一次查询同时检测邮箱与用户名的占用情况
// 避免注册路径上的两次往返
func (s *Store) FindExisting(ctx context.Context, email, username string) (bool, bool, error) {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "email", Value: email}},
		bson.D{{Key: "username", Value: username}},
	}}}

	// 只取命中判定所需的两个字段
	opts := options.Find().SetProjection(bson.D{
		{Key: "email", Value: 1},
		{Key: "username", Value: 1},
	})

	matches, err := findMany[model.Account](ctx, s.col(ColAccounts), filter, opts)
	if err != nil {
		return false, false, err
	}

	var emailTaken, usernameTaken bool
	for _, m := range matches {
		if m.Email == email {
			emailTaken = true
		}
		if m.Username == username {
			usernameTaken = true
		}
	}
	return emailTaken, usernameTaken, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColAccounts), bson.D{{Key: "_id", Value: id}})
}

// UpdateAccount 更新白名单内的资料字段并返回更新后的文档
func (s *Store) UpdateAccount(ctx context.Context, id string, fields storage.UpdatableFields) (*model.Account, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now()}}
	if fields.FirstName != nil {
		set = append(set, bson.E{Key: "first_name", Value: *fields.FirstName})
	}
	if fields.LastName != nil {
		set = append(set, bson.E{Key: "last_name", Value: *fields.LastName})
	}
	if fields.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *fields.Username})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Account
	err := s.col(ColAccounts).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, wrapError(err)
	}
	return &updated, nil
}

func (s *Store) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	return setFields(ctx, s.col(ColAccounts), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now()},
	})
}

// SetRefreshToken 无条件覆盖存量刷新令牌
// 单会话设计：新登录隐式吊销旧会话
func (s *Store) SetRefreshToken(ctx context.Context, id, token string) error {
	return setFields(ctx, s.col(ColAccounts), id, bson.D{
		{Key: "refresh_token", Value: token},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) ClearRefreshToken(ctx context.Context, id string) error {
	return updateByID(ctx, s.col(ColAccounts), id, bson.D{
		{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
	})
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return setFields(ctx, s.col(ColAccounts), id, bson.D{
		{Key: "last_login", Value: at},
		{Key: "updated_at", Value: time.Now()},
	})
}

// SoftDeleteAccount 软删除
// 单次原子更新：失活 + 清除刷新令牌，不允许拆成两步
func (s *Store) SoftDeleteAccount(ctx context.Context, id string) error {
	return updateByID(ctx, s.col(ColAccounts), id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "is_active", Value: false},
			{Key: "updated_at", Value: time.Now()},
		}},
		{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}},
	})
}

// ListAccounts 分页列表，按创建时间倒序
func (s *Store) ListAccounts(ctx context.Context, filter storage.ListFilter, page, pageSize int) ([]*model.Account, int64, error) {
	query := bson.D{}
	if filter.Role != nil {
		query = append(query, bson.E{Key: "role", Value: *filter.Role})
	}
	if filter.IsActive != nil {
		query = append(query, bson.E{Key: "is_active", Value: *filter.IsActive})
	}

	total, err := s.col(ColAccounts).CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrapError(err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	accounts, err := findMany[model.Account](ctx, s.col(ColAccounts), query, opts)
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}
