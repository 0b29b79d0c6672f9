package client

import (
	"context"

	"github.com/vitaliisemenov/datomic-client/internal/cache"
	"github.com/vitaliisemenov/datomic-client/internal/config"
	"github.com/vitaliisemenov/datomic-client/internal/pipeline"
	"github.com/vitaliisemenov/datomic-client/internal/transport"
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
)

// AdminResult resolves CreateDatabase and DeleteDatabase.
type AdminResult struct {
	Anomaly *anomalies.Anomaly
}

// ListResult resolves ListDatabases.
type ListResult struct {
	Databases []string
	Anomaly   *anomalies.Anomaly
}

// CreateDatabase creates the named database.
func CreateDatabase(ctx context.Context, cfg Config, dbName string) <-chan AdminResult {
	out := make(chan AdminResult, 1)
	go func() {
		defer close(out)
		cfg.DbName = dbName
		_, impl, anom := adminImpl(cfg)
		if anom != nil {
			out <- AdminResult{Anomaly: anom}
			return
		}
		resp := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{
			Op:      pipeline.OpCreateDb,
			Payload: map[string]any{"db-name": dbName},
		})
		out <- AdminResult{Anomaly: resp.Anomaly}
	}()
	return out
}

// DeleteDatabase deletes the named database, forgetting any cached
// connection configuration for it first.
func DeleteDatabase(ctx context.Context, cfg Config, dbName string) <-chan AdminResult {
	out := make(chan AdminResult, 1)
	go func() {
		defer close(out)
		cfg.DbName = dbName
		rcfg, impl, anom := adminImpl(cfg)
		if anom != nil {
			out <- AdminResult{Anomaly: anom}
			return
		}
		cache.Default.ForgetConfig(rcfg)
		resp := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{
			Op:      pipeline.OpDeleteDb,
			Payload: map[string]any{"db-name": dbName},
		})
		out <- AdminResult{Anomaly: resp.Anomaly}
	}()
	return out
}

// ListDatabases lists the database names visible to the configuration.
func ListDatabases(ctx context.Context, cfg Config) <-chan ListResult {
	out := make(chan ListResult, 1)
	go func() {
		defer close(out)
		_, impl, anom := adminImpl(cfg)
		if anom != nil {
			out <- ListResult{Anomaly: anom}
			return
		}
		resp := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{
			Op:      pipeline.OpListDbs,
			Payload: map[string]any{},
		})
		if resp.Anomaly != nil {
			out <- ListResult{Anomaly: resp.Anomaly}
			return
		}
		out <- ListResult{Databases: stringSlice(resp.Result)}
	}()
	return out
}

// adminImpl resolves cfg and builds a throwaway connection implementation
// with no resolved database id: catalog ops carry no target.
func adminImpl(cfg Config) (config.Config, *transport.ConnImpl, *anomalies.Anomaly) {
	rcfg, anom := config.Resolve(cfg.internal())
	if anom != nil {
		return config.Config{}, nil, anom
	}
	impl, anom := buildImpl(rcfg)
	if anom != nil {
		return config.Config{}, nil, anom
	}
	return rcfg, impl, nil
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
