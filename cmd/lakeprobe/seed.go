package lakeprobe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lakeprobe/lakeprobe/pkg/sourcedb"
)

var (
	seedRows  int
	seedTable string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert generated rows into the source database",
	Long: `Writes generated user rows into the watched source table. Each row carries
a unique email address, which later lookups use as the key, so seeding can be
repeated without colliding with rows from earlier runs.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&seedRows, "rows", "n", 1, "number of rows to insert")
	seedCmd.Flags().StringVar(&seedTable, "table", "", "target table (default: first configured source table)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	table := seedTable
	if table == "" {
		table = cfg.Source.Tables[0]
	}

	pool, err := pgxpool.New(ctx, cfg.Source.ConnString)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer pool.Close()

	if err := sourcedb.EnsureReplicaIdentityFull(ctx, pool, table, cfg.Source.Schema); err != nil {
		return err
	}

	rows, err := sourcedb.SeedUsers(ctx, pool, table, seedRows, cfg.Source.Schema)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Printf("inserted %s.%s id=%v email=%s\n", cfg.Source.Schema, table, row["id"], row["email"])
	}
	return nil
}
