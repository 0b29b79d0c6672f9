// Package cache holds the process-wide connection cache: three mutually
// consistent mappings between validated configurations, database ids, and
// live connections.
package cache

import (
	"sync"

	"github.com/vitaliisemenov/datomic-client/internal/config"
)

// Connection is the capability the cache needs from a cached connection.
type Connection interface {
	DatabaseID() string
}

// Cache is a bidirectional map: config -> database-id -> connection ->
// config. All mutations happen in a single critical section, so readers
// always observe a consistent snapshot across the three tables.
type Cache struct {
	mu       sync.Mutex
	byConfig map[config.Config]string
	byID     map[string]Connection
	byConn   map[Connection]config.Config
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		byConfig: make(map[config.Config]string),
		byID:     make(map[string]Connection),
		byConn:   make(map[Connection]config.Config),
	}
}

// Default is the process-wide cache.
var Default = New()

// Put installs all three directions for (cfg, databaseID, conn).
func (c *Cache) Put(cfg config.Config, databaseID string, conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byConfig[cfg] = databaseID
	c.byID[databaseID] = conn
	c.byConn[conn] = cfg
}

// ByConfig returns the connection interned for cfg, if any.
func (c *Cache) ByConfig(cfg config.Config) (Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byConfig[cfg]
	if !ok {
		return nil, false
	}
	conn, ok := c.byID[id]
	return conn, ok
}

// ByDatabaseID returns the connection interned for a database id, if any.
func (c *Cache) ByDatabaseID(id string) (Connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byID[id]
	return conn, ok
}

// ForgetConn removes the connection and its config and database-id links.
// No-op when any link is missing.
func (c *Cache) ForgetConn(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.byConn[conn]
	if !ok {
		return
	}
	id, ok := c.byConfig[cfg]
	if !ok {
		return
	}
	delete(c.byConn, conn)
	delete(c.byConfig, cfg)
	delete(c.byID, id)
}

// ForgetConfig removes the config and its database-id and connection links.
// No-op when any link is missing.
func (c *Cache) ForgetConfig(cfg config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byConfig[cfg]
	if !ok {
		return
	}
	conn, ok := c.byID[id]
	if !ok {
		return
	}
	delete(c.byConfig, cfg)
	delete(c.byID, id)
	delete(c.byConn, conn)
}

// Len reports the number of interned connections.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}
