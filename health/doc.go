// Package health reports whether a fragment cache deployment can serve.
//
// Checkers probe one dependency each: the record store, a content cache,
// the store's circuit breaker, and the identity registry. An Aggregator runs
// them in parallel under a deadline and folds the results into one Status,
// which the HTTP handlers expose as liveness and readiness probes.
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register(health.StoreCheck(store))
//	agg.Register(health.CacheCheck("fragments", fragCache))
//	health.RegisterHandlers(mux, agg)
package health
