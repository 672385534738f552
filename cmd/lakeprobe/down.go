package lakeprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakeprobe/lakeprobe/pkg/connect"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Delete the configured connectors",
	Long: `Removes the configured connector definitions from the control plane.
Connectors that are already gone are skipped. Topics, replication slots, and
downstream stores are left as they are.`,
	RunE: runDown,
}

func runDown(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defs, err := loadDefinitions(cfg)
	if err != nil {
		return err
	}

	client := connect.NewClient(connect.Config{
		URL:     cfg.Connect.URL,
		Timeout: cfg.Connect.Timeout,
	}, logger)

	for _, def := range defs {
		if err := client.Delete(ctx, def.Name); err != nil {
			return fmt.Errorf("failed to delete connector %s: %w", def.Name, err)
		}
	}
	return nil
}
