package lakeprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lakeprobe/lakeprobe/pkg/connect"
	"github.com/lakeprobe/lakeprobe/pkg/metrics"
	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
	kafkaprobe "github.com/lakeprobe/lakeprobe/pkg/pipeline/probe/kafka"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Register the connectors and wait until they run",
	Long: `Creates the Iceberg sink's control topic if it is missing, submits every
configured connector definition to the Kafka Connect control plane, then
blocks until each connector and all of its tasks report RUNNING.
Registration treats "already exists" as success, so re-running up against a
live stack converges instead of failing.`,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received termination signal")
		cancel()
	}()

	defs, err := loadDefinitions(cfg)
	if err != nil {
		return err
	}

	// The Iceberg sink negotiates table commits over its control topic but
	// never creates it, so it has to exist before the sink starts.
	if err := ensureControlTopic(logger); err != nil {
		return err
	}

	client := connect.NewClient(connect.Config{
		URL:          cfg.Connect.URL,
		Timeout:      cfg.Connect.Timeout,
		PollInterval: cfg.Connect.PollInterval,
	}, logger)

	for _, def := range defs {
		if _, err := client.Register(ctx, def); err != nil {
			return fmt.Errorf("failed to register connector %s: %w", def.Name, err)
		}
	}

	// Gate on readiness only after every definition is submitted: the sink
	// connectors cannot move until the source exists, and registering all
	// three up front lets the Connect worker rebalance once instead of three
	// times.
	for _, def := range defs {
		start := time.Now()
		_, err := client.WaitRunning(ctx, def.Name, cfg.Connect.ReadyTimeout)
		if err != nil {
			var nre *connect.NotReadyError
			if errors.As(err, &nre) && nre.Last != nil {
				for _, task := range nre.Last.FailedTasks() {
					logger.Error("task not running",
						zap.String("connector", def.Name),
						zap.Int("task", task.ID),
						zap.String("state", task.State),
						zap.String("trace", firstLine(task.Trace)))
				}
			}
			return err
		}
		metrics.ConnectorReadySeconds.WithLabelValues(def.Name).Set(time.Since(start).Seconds())
	}

	logger.Info("all connectors running", zap.Int("count", len(defs)))
	return nil
}

// ensureControlTopic connects to the broker behind the configured kafka
// target and creates the commit coordination topic if it is missing. No
// kafka target means nothing to do.
func ensureControlTopic(logger *zap.Logger) error {
	var target *pipeline.Target
	for i := range cfg.Pipeline.Targets {
		if cfg.Pipeline.Targets[i].ProberName == pipeline.ProberKafka {
			target = &cfg.Pipeline.Targets[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	raw, err := json.Marshal(target.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config for target %s: %w", target.Name, err)
	}

	p := &kafkaprobe.Prober{}
	if err := p.Connect(json.RawMessage(raw)); err != nil {
		return fmt.Errorf("failed to reach brokers for control topic: %w", err)
	}
	defer p.Disconnect()

	if err := p.EnsureControlTopic(); err != nil {
		return err
	}
	logger.Info("control topic ready")
	return nil
}

// firstLine trims a Java stack trace down to its message line.
func firstLine(s string) string {
	if line, _, found := strings.Cut(s, "\n"); found {
		return line
	}
	return s
}
