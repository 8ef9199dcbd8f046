package models

import "context"

// UserStore 用户存储接口
type UserStore interface {
	// Create 保存新用户，邮箱重复时返回 ErrConflict
	Create(ctx context.Context, u *User) error

	// GetByEmail 按邮箱查找用户
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID 按ID查找用户
	GetByID(ctx context.Context, id string) (*User, error)

	// List 列出全部用户
	List(ctx context.Context) ([]User, error)
}

// PracticeStore 练习记录存储接口
type PracticeStore interface {
	// Create 保存练习记录
	Create(ctx context.Context, p *Practice) error

	// List 按条件分页查询，最新的在前
	List(ctx context.Context, userID string, filter PracticeFilter) ([]Practice, int64, error)

	// ListAll 查询用户全部练习记录
	ListAll(ctx context.Context, userID string) ([]Practice, error)
}
