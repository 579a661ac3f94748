package repository

import (
	"context"
	"sync"

	"github.com/rushteam/adkit/core"
)

// Memory 是进程内仓储，用于示例与本地开发。
// 只保存有效 banner：DeleteBanner 之后读取不到，与关系库的软删除语义一致。
type Memory struct {
	mu        sync.RWMutex
	banners   map[int64]core.Banner
	platforms map[int64]core.Platform
}

func NewMemory() *Memory {
	return &Memory{
		banners:   make(map[int64]core.Banner),
		platforms: make(map[int64]core.Platform),
	}
}

// PutBanner 写入或覆盖 banner，写入前校验
func (m *Memory) PutBanner(b core.Banner) error {
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.banners[b.ID] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteBanner(id int64) {
	m.mu.Lock()
	delete(m.banners, id)
	m.mu.Unlock()
}

func (m *Memory) PutPlatform(p core.Platform) {
	m.mu.Lock()
	m.platforms[p.ID] = p
	m.mu.Unlock()
}

func (m *Memory) GetBannersByIDs(ctx context.Context, ids []int64) (map[int64]core.Banner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]core.Banner, len(ids))
	for _, id := range ids {
		if b, ok := m.banners[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (m *Memory) GetPlatform(ctx context.Context, id int64) (core.Platform, error) {
	if err := ctx.Err(); err != nil {
		return core.Platform{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.platforms[id]
	if !ok {
		return core.Platform{}, core.ErrPlatformNotFound
	}
	return p, nil
}

var (
	_ core.BannerRepository   = (*Memory)(nil)
	_ core.PlatformRepository = (*Memory)(nil)
)
