package mcache

// Cache is a size-bounded cache keyed by parameter fingerprints
type Cache[V any] interface {
	Add(key uint64, value V)
	Get(key uint64) (V, bool)
	Remove(key uint64)
	Purge()
	Len() int
	Stats() (hits, misses uint64)
}
