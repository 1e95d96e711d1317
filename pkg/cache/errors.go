package cache

import "errors"

// ErrCacheMiss indicates the requested key was not found in the cache.
// It is expected behavior for the first request of any model/message/file
// combination.
//
// Example usage:
//
//	reply, err := responses.Get(key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//	    // Call the gateway
//	}
var ErrCacheMiss = errors.New("cache miss")
