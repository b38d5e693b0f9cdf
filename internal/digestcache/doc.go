// Package digestcache persists file digests in SQLite so large essence
// files are not rehashed on every run. Entries are keyed by absolute path,
// size and modification time; any change to the file misses the cache.
package digestcache
