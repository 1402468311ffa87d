// Package store 提供 core.KeyValueStore 的内存与 Redis 实现，
// 以及基于 KeyValueStore 的推荐数据源适配器和熔断包装。
//
// 接口定义在 core 包：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	providers := store.NewProviderAdapter(kv, "mixrec").Providers()
//	guarded := store.NewGuarded(providers, store.DefaultBreakerConfig(), logger).Providers()
package store
