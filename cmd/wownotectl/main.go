package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"wownote/internal/db"
	"wownote/internal/storage"
	"wownote/internal/store"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type dbFlags struct {
	driver string
	dsn    string
}

func (f *dbFlags) open(ctx context.Context) (*gorm.DB, error) {
	database, err := db.Connect(ctx, f.driver, f.dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database); err != nil {
		_ = db.Close(database)
		return nil, err
	}
	return database, nil
}

func newRootCommand() *cobra.Command {
	flags := &dbFlags{}
	cmd := &cobra.Command{
		Use:           "wownotectl",
		Short:         "Administrative tasks for a wownote installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.driver, "db-driver", envOr("DB_DRIVER", db.DriverSQLite), "Database driver (postgres or sqlite)")
	cmd.PersistentFlags().StringVar(&flags.dsn, "db-dsn", envOr("DB_DSN", "wownote.db"), "Database DSN or sqlite file")

	cmd.AddCommand(newMigrateCommand(flags))
	cmd.AddCommand(newLocationsCommand(flags))
	cmd.AddCommand(newDetectCloudCommand())
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newMigrateCommand(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := flags.open(commandContext(cmd))
			if err != nil {
				return err
			}
			defer db.Close(database)
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newLocationsCommand(flags *dbFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Manage registered storage locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newLocationsListCommand(flags))
	cmd.AddCommand(newLocationsSeedCommand(flags))
	return cmd
}

func newLocationsListCommand(flags *dbFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List storage locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			database, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close(database)

			locations, err := store.NewLocationStore(database).ListLocations(ctx, !all)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tPATH\tACTIVE")
			for _, loc := range locations {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", loc.ID, loc.Name, loc.StorageType, loc.Path, loc.IsActive)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive locations")
	return cmd
}

func newLocationsSeedCommand(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Register the storage locations listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			seed, err := db.ReadSeedFile(args[0])
			if err != nil {
				return err
			}
			database, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close(database)

			n, err := db.SeedStorageLocations(ctx, database, seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d of %d locations\n", n, len(seed.Locations))
			return nil
		},
	}
}

func newDetectCloudCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect-cloud",
		Short: "Show cloud storage folders found in the home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			paths := storage.DetectCloudPaths(home)
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cloud storage folders found")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tNAME\tPATH")
			for _, p := range paths {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.StorageType, p.Name, p.Path)
			}
			return tw.Flush()
		},
	}
}
