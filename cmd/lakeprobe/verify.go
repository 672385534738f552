package lakeprobe

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lakeprobe/lakeprobe/pkg/metrics"
	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	"github.com/lakeprobe/lakeprobe/pkg/sourcedb"
	"github.com/lakeprobe/lakeprobe/pkg/util/rand"
	"github.com/lakeprobe/lakeprobe/pkg/wait"

	// Register the built-in probers.
	_ "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/elastic"
	_ "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/kafka"
	_ "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/nessie"
	_ "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/postgres"
	_ "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/redis"
	_ "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/trino"
	_ "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/warehouse"
)

var (
	verifyOp          string
	verifyTable       string
	prometheusEnabled bool
	prometheusAddr    string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Seed one change and watch it propagate to every target",
	Long: `Runs one end-to-end round: inserts a row with a unique email into the source
table, then polls every configured target until the change is visible there or
the deadline elapses. With --op update or --op delete the inserted row is
modified or removed afterwards and the final state is awaited as well.

The command exits non-zero if any target missed the deadline or returned a row
whose fields do not match what was written.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOp, "op", "insert", "change to verify: insert, update or delete")
	verifyCmd.Flags().StringVar(&verifyTable, "table", "", "source table (default: first configured source table)")
	verifyCmd.Flags().BoolVar(&prometheusEnabled, "metrics", false, "Enable Prometheus metrics server")
	verifyCmd.Flags().StringVar(&prometheusAddr, "metrics-addr", ":9100", "Prometheus metrics server address")
}

func runVerify(cmd *cobra.Command, args []string) error {
	switch verifyOp {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("unknown --op %q, want insert, update or delete", verifyOp)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	var wg sync.WaitGroup
	if prometheusEnabled || cfg.Metrics.Enabled {
		addr := prometheusAddr
		if !cmd.Flags().Changed("metrics-addr") && cfg.Metrics.ListenAddr != "" {
			addr = cfg.Metrics.ListenAddr
		}
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: addr})
	}

	table := verifyTable
	if table == "" {
		table = cfg.Source.Tables[0]
	}

	m := pipeline.NewManager()
	if err := m.Init(&cfg.Pipeline); err != nil {
		return fmt.Errorf("failed to initialize targets: %w", err)
	}
	defer m.Close()

	pool, err := pgxpool.New(ctx, cfg.Source.ConnString)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer pool.Close()

	reports, roundErr := verifyRound(ctx, m, pool, table)

	ok := len(reports) > 0
	for _, report := range reports {
		printReport(report)
		if !report.OK() {
			ok = false
		}
	}

	// Let the metrics server flush its last scrape before exiting.
	cancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()
	select {
	case <-doneChan:
	case <-time.After(10 * time.Second):
		log.Println("Shutdown timed out after 10 seconds")
	}

	if roundErr != nil {
		return roundErr
	}
	if !ok {
		cmd.SilenceUsage = true
		return fmt.Errorf("verification failed on %s.%s", cfg.Source.Schema, table)
	}
	return nil
}

// verifyRound seeds the change under test and waits for it downstream, one
// phase per operation. Update and delete first verify the insert: there is no
// point diffing an update against targets that never saw the row.
func verifyRound(ctx context.Context, m *pipeline.Manager, pool *pgxpool.Pool, table string) ([]pipeline.Report, error) {
	targets := m.Targets()
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })

	v := pipeline.NewVerifier(m, wait.Config{
		Interval: cfg.Pipeline.PollInterval,
		Timeout:  cfg.Pipeline.PollTimeout,
	})
	scope := pipeline.Scope{Schema: cfg.Source.Schema, Table: table}

	// Delete and update events carry only the replica identity columns, so
	// the watched table keeps full row images.
	if err := sourcedb.EnsureReplicaIdentityFull(ctx, pool, table, cfg.Source.Schema); err != nil {
		return nil, err
	}

	// Baselines must predate the change they attribute growth to.
	v.SnapshotBaselines(ctx, targets, scope)

	row := sourcedb.NewUserRow()
	id, err := sourcedb.InsertRowReturning(ctx, pool, table, row, "id", cfg.Source.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to seed source row: %w", err)
	}

	exp := pipeline.Expectation{
		Schema:    cfg.Source.Schema,
		Table:     table,
		KeyField:  "email",
		Key:       row["email"],
		Fields:    map[string]any{"name": row["name"], "age": row["age"]},
		Operation: "insert",
	}

	reports := []pipeline.Report{v.Verify(ctx, exp, targets)}
	if verifyOp == "insert" || !reports[0].OK() || ctx.Err() != nil {
		return reports, nil
	}

	v.SnapshotBaselines(ctx, targets, scope)

	switch verifyOp {
	case "update":
		renamed := rand.NewName()
		if err := sourcedb.UpdateRow(ctx, pool, table,
			map[string]any{"name": renamed},
			map[string]any{"id": id},
			cfg.Source.Schema); err != nil {
			return reports, fmt.Errorf("failed to update source row: %w", err)
		}
		next := exp
		next.Operation = "update"
		next.Fields = map[string]any{"name": renamed, "age": row["age"]}
		reports = append(reports, v.Verify(ctx, next, targets))
	case "delete":
		if err := sourcedb.DeleteRow(ctx, pool, table,
			map[string]any{"id": id},
			cfg.Source.Schema); err != nil {
			return reports, fmt.Errorf("failed to delete source row: %w", err)
		}
		next := exp
		next.Operation = "delete"
		next.Fields = nil
		next.Absent = true
		reports = append(reports, v.Verify(ctx, next, targets))
	}
	return reports, nil
}

func printReport(r pipeline.Report) {
	fmt.Printf("\n%s %s.%s key=%v\n", r.Operation, cfg.Source.Schema, r.Table, r.Key)
	for _, tr := range r.Targets {
		status := tr.Outcome.String()
		if tr.Outcome == wait.Found && len(tr.Mismatches) > 0 {
			status = "mismatch"
		}
		line := fmt.Sprintf("  %-14s %-9s attempts=%-3d elapsed=%s",
			tr.Target, status, tr.Attempts, tr.Elapsed.Round(time.Millisecond))
		if len(tr.Mismatches) > 0 {
			line += "  " + strings.Join(tr.Mismatches, "; ")
		} else if !tr.OK() && tr.Err != nil {
			line += fmt.Sprintf("  last error: %v", tr.Err)
		}
		fmt.Println(line)
	}
}
