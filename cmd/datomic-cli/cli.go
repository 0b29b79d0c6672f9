package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/datomic-client/pkg/client"
)

// CLI drives the administrative and inspection operations of the client.
type CLI struct {
	cfg    client.Config
	logger *slog.Logger
}

// NewCLI creates a new CLI interface.
func NewCLI(logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{logger: logger}
}

// GetRootCommand returns the root CLI command.
func (cli *CLI) GetRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "datomic-cli",
		Short: "Administrative client for a remote transactional database",
		Long:  "Create, delete, and list databases, inspect connection status, and run queries against a remote transactional database service.",
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cli.cfg.AccountID, "account-id", "", "account id (default from DATOMIC_ACCOUNT_ID)")
	flags.StringVar(&cli.cfg.AccessKey, "access-key", "", "access key (default from DATOMIC_ACCESS_KEY)")
	flags.StringVar(&cli.cfg.Secret, "secret", "", "secret (default from DATOMIC_SECRET)")
	flags.StringVar(&cli.cfg.Endpoint, "endpoint", "", "endpoint host[:port] (default from DATOMIC_ENDPOINT)")
	flags.StringVar(&cli.cfg.Service, "service", "", "service (default from DATOMIC_SERVICE)")
	flags.StringVar(&cli.cfg.Region, "region", "", "region (default from DATOMIC_REGION)")
	flags.IntVar(&cli.cfg.TimeoutMillis, "timeout", 0, "request timeout in milliseconds")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		client.SetLogger(cli.logger)
	}

	rootCmd.AddCommand(
		cli.createCommand(),
		cli.deleteCommand(),
		cli.listCommand(),
		cli.statusCommand(),
		cli.qCommand(),
	)

	return rootCmd
}

func (cli *CLI) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-db <name>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := <-client.CreateDatabase(context.Background(), cli.cfg, args[0])
			if result.Anomaly != nil {
				return result.Anomaly
			}
			fmt.Printf("Created %s\n", args[0])
			return nil
		},
	}
}

func (cli *CLI) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-db <name>",
		Short: "Delete a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := <-client.DeleteDatabase(context.Background(), cli.cfg, args[0])
			if result.Anomaly != nil {
				return result.Anomaly
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func (cli *CLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-dbs",
		Short: "List databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := <-client.ListDatabases(context.Background(), cli.cfg)
			if result.Anomaly != nil {
				return result.Anomaly
			}
			for _, name := range result.Databases {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func (cli *CLI) statusCommand() *cobra.Command {
	var dbName string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Connect to a database and print its watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cli.cfg
			cfg.DbName = dbName
			result := <-client.Connect(context.Background(), cfg)
			if result.Anomaly != nil {
				return result.Anomaly
			}
			t, nextT := result.Conn.State()
			fmt.Printf("database-id: %s\nt: %d\nnext-t: %d\n", result.Conn.DatabaseID(), t, nextT)
			client.Shutdown(result.Conn)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbName, "db-name", "", "database to connect to")
	_ = cmd.MarkFlagRequired("db-name")
	return cmd
}

func (cli *CLI) qCommand() *cobra.Command {
	var dbName, query string
	cmd := &cobra.Command{
		Use:   "q",
		Short: "Run a query and stream results to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg := cli.cfg
			cfg.DbName = dbName
			result := <-client.Connect(ctx, cfg)
			if result.Anomaly != nil {
				return result.Anomaly
			}
			defer client.Shutdown(result.Conn)

			chunks := client.Q(ctx, result.Conn, client.QParams{
				Query: query,
				Args:  []any{result.Conn.Db()},
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			for chunk := range chunks {
				if chunk.Anomaly != nil {
					return chunk.Anomaly
				}
				for _, row := range chunk.Data {
					if err := enc.Encode(row); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbName, "db-name", "", "database to query")
	cmd.Flags().StringVar(&query, "query", "", "query expression")
	_ = cmd.MarkFlagRequired("db-name")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
