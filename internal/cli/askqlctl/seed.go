package askqlctl

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	catalogpostgres "github.com/artevida/askql/internal/catalog/postgres"
	"github.com/artevida/askql/internal/config"
	"github.com/artevida/askql/internal/dataset"
	"github.com/artevida/askql/internal/storage"
	"github.com/artevida/askql/internal/storage/s3"
)

const (
	targetPostgres    = "postgres"
	targetObjectStore = "objectstore"
)

// Seeder opens the seed targets. Zero fields use the real Postgres pool and
// S3 store built from configuration.
type Seeder struct {
	OpenDB    func(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error)
	OpenStore func(ctx context.Context, cfg config.ObjectStoreConfig) (storage.ObjectStore, error)
	Now       func() time.Time
}

func (s Seeder) openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if s.OpenDB != nil {
		return s.OpenDB(ctx, cfg)
	}
	return catalogpostgres.Open(ctx, catalogpostgres.DBConfig{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ApplicationName: "askqlctl",
	})
}

func (s Seeder) openStore(ctx context.Context, cfg config.ObjectStoreConfig) (storage.ObjectStore, error) {
	if s.OpenStore != nil {
		return s.OpenStore(ctx, cfg)
	}
	return s3.New(ctx, s3.Config{
		Endpoint:         cfg.Endpoint,
		Region:           cfg.Region,
		Bucket:           cfg.Bucket,
		AccessKeyID:      cfg.AccessKeyID,
		SecretAccessKey:  cfg.SecretAccessKey,
		UseSSL:           cfg.UseSSL,
		AutoCreateBucket: cfg.AutoCreateBucket,
	})
}

func (s Seeder) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func newSeedCommand(opts *Options) *cobra.Command {
	var (
		target    string
		name      string
		batchSize int
	)
	gen := dataset.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the deterministic demo dataset into Postgres or the object store",
		Long: `seed generates the ArteVida demo dataset from a fixed seed and either replaces
the Postgres tables (--target postgres) or publishes one Parquet file per table
plus a manifest to the object store (--target objectstore), where the DuckDB
engine reads it. Connection settings come from the ASKQL_ environment.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			lookup := opts.Lookup
			if lookup == nil {
				lookup = os.LookupEnv
			}
			cfg, err := config.Load("askqlctl", lookup)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			now := opts.Seeder.now()
			gen.Now = now
			d := dataset.Generate(gen)

			switch target {
			case targetPostgres:
				return seedPostgres(cmd.Context(), opts, cfg, d, batchSize)
			case targetObjectStore:
				if name == "" {
					name = cfg.ObjectStore.DatasetPrefix
				}
				return seedObjectStore(cmd.Context(), opts, cfg, d, name, now)
			default:
				return usageError(fmt.Errorf("unknown --target %q: want %s or %s", target, targetPostgres, targetObjectStore))
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&target, "target", targetPostgres, "where to load the dataset: postgres or objectstore")
	flags.StringVar(&name, "dataset", "", "dataset name in the object store (default ASKQL_DATASET_PREFIX)")
	flags.IntVar(&batchSize, "batch-size", dataset.DefaultBatchSize, "rows per INSERT statement")
	flags.Int64Var(&gen.Seed, "seed", gen.Seed, "random seed")
	flags.IntVar(&gen.Events, "events", gen.Events, "number of events")
	flags.IntVar(&gen.Attendees, "attendees", gen.Attendees, "number of attendees")
	return cmd
}

func seedPostgres(ctx context.Context, opts *Options, cfg config.Config, d *dataset.Dataset, batchSize int) error {
	db, err := opts.Seeder.openDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	loaded, err := dataset.LoadPostgres(ctx, db, d, batchSize)
	if err != nil {
		return err
	}
	return printJSON(opts.Stdout, map[string]any{"target": targetPostgres, "seed": d.Seed, "rows": loaded})
}

func seedObjectStore(ctx context.Context, opts *Options, cfg config.Config, d *dataset.Dataset, name string, now time.Time) error {
	store, err := opts.Seeder.openStore(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	manifest, err := dataset.Publish(ctx, store, name, d, now)
	if err != nil {
		return fmt.Errorf("publish dataset: %w", err)
	}
	return printJSON(opts.Stdout, map[string]any{"target": targetObjectStore, "manifest": manifest})
}
