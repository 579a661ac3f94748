// Package store 包含缓存与向量索引的基础设施实现，接口定义在 core 包。
//
// 示例：
//
//	var cache core.Store = store.NewMemoryStore()
//	cache = store.NewBreakerStore(cache, store.DefaultBreakerConfig())
//	var index core.VectorIndex = store.NewMemoryVectorIndex(64)
package store
