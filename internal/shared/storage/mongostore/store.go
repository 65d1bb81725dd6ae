// Package mongostore 实现基于 MongoDB 的 AccountStore
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 连接池参数与超时由调用方通过 Options 传入；连接建立后的瞬时断连由
// 驱动自身的连接池重连机制处理，本包只负责记录状态变迁日志。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColAccounts = "accounts"
)

// Options 连接参数
type Options struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	MinPoolSize            uint64
	ServerSelectionTimeout time.Duration
	SocketTimeout          time.Duration // 单次操作超时（driver v2 的 Timeout）
}

// Store 实现 storage.AccountStore 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// 心跳状态：0=未知 1=在线 2=离线
	// 用于保证每次状态变迁只记录一条日志
	serverState atomic.Int32
}

const (
	stateUnknown int32 = iota
	stateUp
	stateDown
)

// NewStore 创建 MongoDB 存储实例并校验连通性
//
// 失败直接返回错误，重试策略由调用方（启动序列）决定。
func NewStore(opts Options) (*Store, error) {
	s := &Store{}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(opts.MaxPoolSize).
		SetMinPoolSize(opts.MinPoolSize).
		SetServerSelectionTimeout(opts.ServerSelectionTimeout).
		SetTimeout(opts.SocketTimeout).
		SetServerMonitor(s.serverMonitor())

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ServerSelectionTimeout)
	defer cancel()

	if err := client.Ping(ctx, nil); err != nil {
		// Ping 失败时释放已建立的连接池，避免重试时泄漏
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(opts.Database)
	s.client = client
	s.db = db

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongostore: ensure indexes: %w", err)
	}

	return s, nil
}

// serverMonitor 心跳监听：每次状态变迁只记录一次
func (s *Store) serverMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			switch s.serverState.Swap(stateUp) {
			case stateUnknown:
				log.Printf("[mongostore] connected")
			case stateDown:
				log.Printf("[mongostore] reconnected")
			}
		},
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			if s.serverState.Swap(stateDown) != stateDown {
				log.Printf("[mongostore] disconnected: %v", e.Failure)
			}
		},
	}
}

// Close 关闭 MongoDB 连接池
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
//
// email 与 username 的全局唯一性由唯一索引保证，
// 业务层的预检查只用于生成友好错误信息，不承担正确性。
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		{ColAccounts, bson.D{{Key: "email", Value: 1}}, true},
		{ColAccounts, bson.D{{Key: "username", Value: 1}}, true},
		{ColAccounts, bson.D{{Key: "role", Value: 1}}, false},
		{ColAccounts, bson.D{{Key: "is_active", Value: 1}}, false},
		{ColAccounts, bson.D{{Key: "created_at", Value: -1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
