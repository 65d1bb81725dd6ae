// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（mongostore/memstore）负责将底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate 唯一键冲突（无法判断具体字段时的兜底）
	ErrDuplicate = errors.New("duplicate: entity already exists")

	// ErrDuplicateEmail 邮箱已被注册
	ErrDuplicateEmail = errors.New("duplicate: email already registered")

	// ErrDuplicateUsername 用户名已被占用
	ErrDuplicateUsername = errors.New("duplicate: username already taken")
)
