// Package client is the public facade of the database client: it opens
// long-lived logical connections to named databases, reads points-in-time
// and ranges of facts, executes declarative queries, and submits
// transactions. Every operation that touches the network is asynchronous
// and returns a single-shot result channel or a chunk stream.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vitaliisemenov/datomic-client/internal/cache"
	"github.com/vitaliisemenov/datomic-client/internal/config"
	"github.com/vitaliisemenov/datomic-client/internal/pipeline"
	"github.com/vitaliisemenov/datomic-client/internal/transport"
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// Pro peer-server mode accepts these placeholder credentials in place of
// real account and region values.
const (
	ProAccount = "00000000-0000-0000-0000-000000000000"
	ProRegion  = "none"
)

// Config is the user-supplied part of a connection configuration. Zero
// fields are filled from the DATOMIC_* environment variables and, when
// still incomplete, from ~/.datomic/config.
type Config struct {
	AccountID string
	AccessKey string
	Secret    string
	Endpoint  string
	Service   string
	Region    string

	// TimeoutMillis is the default per-request timeout. 0 means 60000.
	TimeoutMillis int

	// DbName names the database to connect to.
	DbName string
}

func (c Config) internal() config.Config {
	return config.Config{
		AccountID: c.AccountID,
		AccessKey: c.AccessKey,
		Secret:    c.Secret,
		Endpoint:  c.Endpoint,
		Service:   c.Service,
		Region:    c.Region,
		Timeout:   c.TimeoutMillis,
		DbName:    c.DbName,
	}
}

// Connection is a logical handle to a named database. It is created by
// Connect, interned in the process-wide cache, and destroyed only by
// Shutdown.
type Connection interface {
	AccountID() string
	DbName() string
	DatabaseID() string

	// State returns the watermark snapshot (t, next-t).
	State() (t, nextT int64)

	// Db returns the current database descriptor. Local, no network.
	Db() types.Db
}

// conn is the one Connection implementation.
type conn struct {
	cfg    config.Config
	impl   *transport.ConnImpl
	state  *types.State
	logger *slog.Logger
}

func (c *conn) AccountID() string  { return c.cfg.AccountID }
func (c *conn) DbName() string     { return c.cfg.DbName }
func (c *conn) DatabaseID() string { return c.impl.DatabaseID }

func (c *conn) State() (int64, int64) { return c.state.Load() }

func (c *conn) Db() types.Db {
	t, nextT := c.state.Load()
	return types.Db{DatabaseID: c.impl.DatabaseID, T: t, NextT: nextT}
}

func (c *conn) String() string {
	t, nextT := c.state.Load()
	return fmt.Sprintf("{account-id: %q, db-name: %q, database-id: %q, t: %d, next-t: %d}",
		c.AccountID(), c.DbName(), c.DatabaseID(), t, nextT)
}

// ConnectResult resolves a Connect call.
type ConnectResult struct {
	Conn    Connection
	Anomaly *anomalies.Anomaly
}

var (
	defaultLogger = slog.Default()

	// httpClient is swapped by tests to point at a fake server.
	httpClient func() *http.Client = transport.SharedClient

	connectGroup singleflight.Group
)

// SetLogger replaces the logger used by connections created afterwards.
func SetLogger(l *slog.Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Connect resolves and validates cfg and delivers the interned connection
// for it, building one if none exists. Concurrent calls with the same
// configuration share a single build; everyone receives the same handle.
func Connect(ctx context.Context, cfg Config) <-chan ConnectResult {
	out := make(chan ConnectResult, 1)
	go func() {
		defer close(out)
		out <- connect(ctx, cfg)
	}()
	return out
}

func connect(ctx context.Context, cfg Config) ConnectResult {
	rcfg, anom := config.Resolve(cfg.internal())
	if anom != nil {
		return ConnectResult{Anomaly: anom}
	}
	if c, ok := cache.Default.ByConfig(rcfg); ok {
		return ConnectResult{Conn: c.(Connection)}
	}

	v, _, _ := connectGroup.Do(fmt.Sprintf("%#v", rcfg), func() (any, error) {
		if c, ok := cache.Default.ByConfig(rcfg); ok {
			return ConnectResult{Conn: c.(Connection)}, nil
		}
		return buildConnection(ctx, rcfg), nil
	})
	return v.(ConnectResult)
}

func buildConnection(ctx context.Context, rcfg config.Config) ConnectResult {
	impl, anom := buildImpl(rcfg)
	if anom != nil {
		return ConnectResult{Anomaly: anom}
	}

	resolved := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{
		Op:      pipeline.OpResolveDb,
		Payload: map[string]any{"db-name": rcfg.DbName},
	})
	if resolved.Anomaly != nil {
		return ConnectResult{Anomaly: resolved.Anomaly}
	}
	if resolved.DatabaseID == "" {
		return ConnectResult{Anomaly: anomalies.Newf(anomalies.Fault,
			"resolve-db returned no database-id for %q", rcfg.DbName)}
	}
	impl.DatabaseID = resolved.DatabaseID

	status := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{Op: pipeline.OpStatus})
	if status.Anomaly != nil {
		return ConnectResult{Anomaly: status.Anomaly}
	}

	c := &conn{cfg: rcfg, impl: impl, state: impl.State, logger: impl.Logger}
	cache.Default.Put(rcfg, impl.DatabaseID, c)
	c.logger.Info("connected", "db-name", rcfg.DbName, "database-id", impl.DatabaseID)
	return ConnectResult{Conn: c}
}

// buildImpl assembles a connection implementation from a validated config:
// parsed endpoint, signer, shared HTTP client, fresh watermark.
func buildImpl(rcfg config.Config) (*transport.ConnImpl, *anomalies.Anomaly) {
	ep, anom := config.ParseEndpoint(rcfg.Endpoint)
	if anom != nil {
		return nil, anom
	}
	return &transport.ConnImpl{
		Scheme:  ep.Scheme,
		Host:    ep.Host,
		Port:    ep.Port,
		Timeout: time.Duration(rcfg.Timeout) * time.Millisecond,
		Signer:  transport.NewSigner(rcfg.AccessKey, rcfg.Secret, rcfg.Service, rcfg.Region),
		Client:  httpClient(),
		State:   types.NewState(),
		Logger:  defaultLogger,
	}, nil
}

// Shutdown removes the connection from the cache. Local state persists: Db
// keeps answering from memory, but network operations for its database id
// will no longer find an implementation. Idempotent.
func Shutdown(c Connection) {
	if c == nil {
		return
	}
	if cc, ok := c.(*conn); ok {
		cache.Default.ForgetConn(cc)
		cc.logger.Info("connection shut down", "database-id", cc.DatabaseID())
	}
}

// LogDescriptor identifies a connection's transaction log.
type LogDescriptor struct {
	Log string
}

// Log returns the descriptor of the connection's transaction log. Local, no
// network.
func Log(c Connection) LogDescriptor {
	return LogDescriptor{Log: c.DatabaseID()}
}

// implFor finds the connection implementation serving a database id through
// the cache.
func implFor(databaseID string) (*transport.ConnImpl, *anomalies.Anomaly) {
	c, ok := cache.Default.ByDatabaseID(databaseID)
	if !ok {
		return nil, anomalies.Newf(anomalies.NotFound,
			"no connection for database-id %q", databaseID)
	}
	return c.(*conn).impl, nil
}

func implOf(c Connection) (*transport.ConnImpl, *anomalies.Anomaly) {
	if cc, ok := c.(*conn); ok {
		return cc.impl, nil
	}
	return nil, anomalies.New(anomalies.Incorrect, "unknown connection implementation")
}
