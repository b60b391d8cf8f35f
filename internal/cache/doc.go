// Package cache stores synthesized audio so re-reading a document costs
// no synthesis requests. A Manager fronts a bounded in-memory LRU with a
// zstd-compressed directory on disk that survives restarts.
package cache
