package cmd

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cora-labs/lendsim/pkg/study"
)

func addCacheFlags(cmd *cobra.Command) {
	cmd.Flags().String("cache", "file", "result cache backend: memory, file, redis or mysql")
	cmd.Flags().String("cache-dir", ".lendsim/cache", "directory for the file cache backend")
	cmd.Flags().String("redis-url", "redis://localhost:6379/0", "redis url for the redis cache backend")
	cmd.Flags().String("mysql-dsn", "", "mysql dsn for the mysql cache backend")
}

// buildStore wires the selected cache backend from the command flags.
func buildStore(ctx context.Context, cmd *cobra.Command) (study.Store, error) {
	backend, err := cmd.Flags().GetString("cache")
	if err != nil {
		return nil, err
	}

	switch backend {
	case "memory":
		return study.NewMemoryStore(), nil

	case "file":
		dir, err := cmd.Flags().GetString("cache-dir")
		if err != nil {
			return nil, err
		}
		return study.NewFileStore(dir)

	case "redis":
		url, err := cmd.Flags().GetString("redis-url")
		if err != nil {
			return nil, err
		}
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, errors.Wrap(err, "parsing redis url")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, errors.Wrap(err, "connecting to redis")
		}
		return study.NewRedisStore(client, ""), nil

	case "mysql":
		dsn, err := cmd.Flags().GetString("mysql-dsn")
		if err != nil {
			return nil, err
		}
		if dsn == "" {
			return nil, errors.New("the mysql cache backend requires --mysql-dsn")
		}
		db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "connecting to mysql")
		}
		store := study.NewSQLStore(db, "")
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, errors.Errorf("unknown cache backend %q", backend)
}
