package database

import (
	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached opens the client used by the request repository's
// read-through and browse caches.
func NewMemcached(server string) *memcache.Client {
	return memcache.New(server)
}
