// Package cache holds one adapter per entity type over the shared keyed
// cache store.
//
// Adapters translate domain objects to and from the cache's structured
// representations (hashes, sorted sets, sets, lists) and maintain counters.
// They never trigger persistence or fan-out; that composition lives in the
// service layer. An adapter only touches its own key namespace; counter
// changes on another entity go through that entity's adapter.
//
// Reads return (nil, nil) or an empty slice on a miss. A miss never
// repopulates the cache.
package cache
