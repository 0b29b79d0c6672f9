package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/datomic-client/internal/config"
)

type fakeConn struct {
	id string
}

func (f *fakeConn) DatabaseID() string { return f.id }

func cfgFor(name string) config.Config {
	return config.Config{
		AccountID: "a", AccessKey: "k", Secret: "s",
		Endpoint: "h", Service: "svc", Region: "r",
		Timeout: 60000, DbName: name,
	}
}

func TestCache_PutAndLookup(t *testing.T) {
	c := New()
	cfg := cfgFor("movies")
	conn := &fakeConn{id: "db-1"}

	c.Put(cfg, "db-1", conn)

	got, ok := c.ByConfig(cfg)
	require.True(t, ok)
	assert.Same(t, conn, got.(*fakeConn))

	got, ok = c.ByDatabaseID("db-1")
	require.True(t, ok)
	assert.Same(t, conn, got.(*fakeConn))

	_, ok = c.ByConfig(cfgFor("other"))
	assert.False(t, ok)
}

func TestCache_ForgetConn(t *testing.T) {
	c := New()
	cfg := cfgFor("movies")
	conn := &fakeConn{id: "db-1"}
	c.Put(cfg, "db-1", conn)

	c.ForgetConn(conn)

	_, ok := c.ByConfig(cfg)
	assert.False(t, ok)
	_, ok = c.ByDatabaseID("db-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	// Idempotent.
	c.ForgetConn(conn)
}

func TestCache_ForgetConfig(t *testing.T) {
	c := New()
	cfg := cfgFor("movies")
	conn := &fakeConn{id: "db-1"}
	c.Put(cfg, "db-1", conn)

	c.ForgetConfig(cfg)

	_, ok := c.ByDatabaseID("db-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	// Unknown config is a no-op.
	c.ForgetConfig(cfgFor("never"))
}

func TestCache_BijectionUnderMutation(t *testing.T) {
	c := New()

	conns := make([]*fakeConn, 20)
	for i := range conns {
		conns[i] = &fakeConn{id: fmt.Sprintf("db-%d", i)}
		c.Put(cfgFor(fmt.Sprintf("name-%d", i)), conns[i].id, conns[i])
	}
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			c.ForgetConn(conns[i])
		} else {
			c.ForgetConfig(cfgFor(fmt.Sprintf("name-%d", i)))
		}
	}

	assert.Equal(t, 10, c.Len())
	for i := 10; i < 20; i++ {
		cfg := cfgFor(fmt.Sprintf("name-%d", i))
		byCfg, ok := c.ByConfig(cfg)
		require.True(t, ok, "config %d", i)
		byID, ok := c.ByDatabaseID(fmt.Sprintf("db-%d", i))
		require.True(t, ok)
		assert.Same(t, byCfg, byID, "the three tables stay mutually invertible")
	}
	for i := 0; i < 10; i++ {
		_, ok := c.ByConfig(cfgFor(fmt.Sprintf("name-%d", i)))
		assert.False(t, ok)
		_, ok = c.ByDatabaseID(fmt.Sprintf("db-%d", i))
		assert.False(t, ok)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := cfgFor(fmt.Sprintf("n-%d", i))
			conn := &fakeConn{id: fmt.Sprintf("db-%d", i)}
			c.Put(cfg, conn.id, conn)
			if _, ok := c.ByConfig(cfg); !ok {
				t.Error("lost own entry")
			}
			if i%2 == 0 {
				c.ForgetConn(conn)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, c.Len())
}
