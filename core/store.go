package core

import (
	"context"
	"strconv"
	"time"
)

// Store 是缓存存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 实现必须支持多个请求并发访问
//   - Pipeline 不拥有 Store 的生命周期，只在每次调用中使用
//
// 使用场景：
//   - banner 记录缓存（banner:{id}）
//   - banner 向量缓存（embedding:{id}）
//
// 实现：
//   - store.RedisStore（生产）
//   - store.MemoryStore（测试/开发）
//   - store.BreakerStore（熔断包装）
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl <= 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除 key（不存在不报错）
	Delete(ctx context.Context, keys ...string) error

	// BatchGet 批量读取（一次网络往返），缺失的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入，所有 key 使用同一 ttl
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreUnavailable 表示缓存不可用（如熔断打开）
	ErrStoreUnavailable = NewDomainError(ModuleStore, ErrorCodeUnavailable, "store: unavailable")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// 缓存 key 前缀，两个命名空间互不冲突
const (
	BannerKeyPrefix    = "banner:"
	EmbeddingKeyPrefix = "embedding:"
)

// BannerCacheKey 返回 banner 记录的缓存 key
func BannerCacheKey(id int64) string {
	return BannerKeyPrefix + strconv.FormatInt(id, 10)
}

// EmbeddingCacheKey 返回 banner 向量的缓存 key
func EmbeddingCacheKey(id int64) string {
	return EmbeddingKeyPrefix + strconv.FormatInt(id, 10)
}
