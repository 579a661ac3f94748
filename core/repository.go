package core

import "context"

// BannerRepository 是 banner 的权威数据源（关系库）。
//
// 实现必须并发安全；连接池满时调用方阻塞等待，直到获得连接或 ctx 结束。
type BannerRepository interface {
	// GetBannersByIDs 批量读取有效（未删除、已启用）的 banner，
	// 未命中的 ID 不出现在结果中，不视为错误。
	GetBannersByIDs(ctx context.Context, ids []int64) (map[int64]Banner, error)
}

// PlatformRepository 读取请求方用户记录。
type PlatformRepository interface {
	// GetPlatform 读取用户，不存在时返回 ErrPlatformNotFound。
	GetPlatform(ctx context.Context, id int64) (Platform, error)
}

// ErrPlatformNotFound 表示用户不存在或已删除
var ErrPlatformNotFound = NewDomainError(ModuleRepository, ErrorCodeNotFound, "repository: platform not found")
