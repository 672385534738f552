package lakeprobe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakeprobe/lakeprobe/pkg/connect"
	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	kafkaprobe "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/kafka"
	pgprobe "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connector states, replication health, and per-target counts",
	Long: `Prints the state of every registered connector and its tasks, the logical
replication slots and publications on the source database, and the current
row, document, or object count on each countable target. Targets that cannot
be reached are reported inline instead of failing the whole command.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := connect.NewClient(connect.Config{
		URL:     cfg.Connect.URL,
		Timeout: cfg.Connect.Timeout,
	}, nil)

	if err := printConnectors(ctx, client); err != nil {
		return err
	}

	m := pipeline.NewManager()
	if err := m.Init(&cfg.Pipeline); err != nil {
		fmt.Printf("\ntargets unavailable: %v\n", err)
		return nil
	}
	defer m.Close()

	printReplication(ctx, m)
	printControlTopic(m)
	printCounts(ctx, m)
	return nil
}

func printConnectors(ctx context.Context, client *connect.Client) error {
	names, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list connectors: %w", err)
	}
	sort.Strings(names)

	fmt.Println("connectors:")
	if len(names) == 0 {
		fmt.Println("  (none registered)")
	}
	for _, name := range names {
		st, err := client.Status(ctx, name)
		if err != nil {
			if errors.Is(err, connect.ErrConnectorNotFound) {
				// deleted between List and Status
				continue
			}
			fmt.Printf("  %-24s error: %v\n", name, err)
			continue
		}
		tasks := make([]string, 0, len(st.Tasks))
		for _, task := range st.Tasks {
			tasks = append(tasks, fmt.Sprintf("%d:%s", task.ID, task.State))
		}
		fmt.Printf("  %-24s %-11s tasks [%s]\n", name, st.Connector.State, strings.Join(tasks, " "))
	}
	return nil
}

// printReplication reports slot lag and publications from the source. A slot
// that keeps retaining WAL while counts stand still points at a stopped
// connector rather than a slow sink.
func printReplication(ctx context.Context, m *pipeline.Manager) {
	var prober *pgprobe.Prober
	for _, t := range m.Targets() {
		if p, ok := t.Prober().(*pgprobe.Prober); ok {
			prober = p
			break
		}
	}
	if prober == nil {
		return
	}

	fmt.Println("\nreplication:")
	slots, err := prober.ReplicationSlots(ctx)
	if err != nil {
		fmt.Printf("  slots error: %v\n", err)
	} else if len(slots) == 0 {
		fmt.Println("  (no logical replication slots)")
	}
	for _, slot := range slots {
		active := "inactive"
		if slot.Active {
			active = "active"
		}
		fmt.Printf("  slot %-20s %-12s %-9s retained %s\n",
			slot.Name, slot.Plugin, active, formatBytes(slot.RetainedBytes))
	}

	pubs, err := prober.Publications(ctx)
	if err != nil {
		fmt.Printf("  publications error: %v\n", err)
		return
	}
	if len(pubs) > 0 {
		fmt.Printf("  publications: %s\n", strings.Join(pubs, ", "))
	}
}

// printControlTopic reports whether the Iceberg sink's commit coordination
// topic exists on the broker yet. A sink stuck before its first commit
// usually shows up here first.
func printControlTopic(m *pipeline.Manager) {
	for _, t := range m.Targets() {
		prober, ok := t.Prober().(*kafkaprobe.Prober)
		if !ok {
			continue
		}
		ready, err := prober.ControlTopicReady()
		switch {
		case err != nil:
			fmt.Printf("\ncontrol topic: error: %v\n", err)
		case ready:
			fmt.Println("\ncontrol topic: present")
		default:
			fmt.Println("\ncontrol topic: missing")
		}
		return
	}
}

func printCounts(ctx context.Context, m *pipeline.Manager) {
	targets := m.Targets()
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })

	fmt.Println("\ncounts:")
	for _, table := range cfg.Source.Tables {
		scope := pipeline.Scope{Schema: cfg.Source.Schema, Table: table}
		fmt.Printf("  %s.%s:\n", scope.Schema, scope.Table)
		for _, t := range targets {
			prober := t.Prober()
			if prober == nil || !prober.Kind().CanCount() {
				continue
			}
			n, err := prober.Count(ctx, scope)
			if err != nil {
				fmt.Printf("    %-14s error: %v\n", t.Name, err)
				continue
			}
			fmt.Printf("    %-14s %d\n", t.Name, n)
		}
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
