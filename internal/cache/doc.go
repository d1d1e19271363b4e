// Package cache holds the process-wide response cache used by the catalog
// proxy. Entries live only in memory for the lifetime of the process: an entry
// is served while now-StoredAt is strictly less than the configured TTL and is
// replaced wholesale by the next miss once it goes stale. Nothing is swept or
// evicted; the key space (provider x region) is small and bounded in practice.
// The Memory type is an owned component injected into the catalog service so
// tests can run isolated instances with their own clock.
package cache
