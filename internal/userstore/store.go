// Package userstore 实现客户端使用的按用户命名空间的 JSON 键值存储：
// read(userKey, field) -> blob | absent，write(userKey, field, blob) -> ack。
// 磁盘布局遵循：
//
//	<StoragePath>/<userKey>/<field>.json
//
// 写入通过临时文件 + rename 保证原子性；catalog 代理不依赖本包。
package userstore

import (
	"context"
	"errors"
)

// Field 是允许写入的记录名，对应资料、片单、观看进度与好友列表四类数据。
type Field string

const (
	FieldProfile   Field = "profile"
	FieldWatchlist Field = "watchlist"
	FieldProgress  Field = "progress"
	FieldFriends   Field = "friends"
)

// Fields 返回所有受支持的记录名。
func Fields() []Field {
	return []Field{FieldProfile, FieldWatchlist, FieldProgress, FieldFriends}
}

// ParseField 校验并标准化记录名。
func ParseField(raw string) (Field, error) {
	for _, f := range Fields() {
		if string(f) == raw {
			return f, nil
		}
	}
	return "", ErrUnknownField
}

// Store 负责按用户读写 JSON blob。
type Store interface {
	// Read 返回已存储的 blob；不存在时返回 ErrNotFound。
	Read(ctx context.Context, userKey string, field Field) ([]byte, error)

	// Write 以整体覆盖的方式写入 blob，blob 必须是合法 JSON。
	Write(ctx context.Context, userKey string, field Field, blob []byte) error
}

var (
	// ErrNotFound 表示该用户尚未写入此记录。
	ErrNotFound = errors.New("user record not found")
	// ErrUnknownField 表示记录名不在 Fields() 之内。
	ErrUnknownField = errors.New("unknown user record field")
	// ErrInvalidUserKey 表示用户键为空或包含路径字符。
	ErrInvalidUserKey = errors.New("invalid user key")
	// ErrInvalidBlob 表示写入内容不是合法 JSON。
	ErrInvalidBlob = errors.New("blob is not valid json")
)
