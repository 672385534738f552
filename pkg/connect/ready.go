package connect

import (
	"cmp"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lakeprobe/lakeprobe/pkg/wait"
)

// WaitRunning blocks until the named connector and all of its tasks report
// RUNNING, checking at the client's poll interval. Check errors are treated
// as transient and retried: right after registration the control plane may
// return 404 or refuse requests while the worker group rebalances.
//
// On deadline it returns a *NotReadyError carrying the connector name, the
// timeout, and the last observed status. On context cancellation it returns
// ctx.Err(). A timeout of 0 falls back to wait.DefaultTimeout.
func (c *Client) WaitRunning(ctx context.Context, name string, timeout time.Duration) (*Status, error) {
	timeout = cmp.Or(timeout, wait.DefaultTimeout)

	var last *Status
	res := wait.Poll(ctx, wait.Config{Interval: c.cfg.PollInterval, Timeout: timeout},
		func(ctx context.Context) (any, bool, error) {
			st, err := c.Status(ctx, name)
			if err != nil {
				c.logger.Debug("connector status check failed", zap.String("name", name), zap.Error(err))
				return nil, false, err
			}
			last = st
			if !st.Ready() {
				c.logger.Debug("connector not ready",
					zap.String("name", name),
					zap.String("state", st.Connector.State),
					zap.Int("tasks", len(st.Tasks)))
				return nil, false, nil
			}
			return st, true, nil
		})

	switch res.Outcome {
	case wait.Found:
		st := res.Value.(*Status)
		c.logger.Info("connector running",
			zap.String("name", name),
			zap.Int("tasks", len(st.Tasks)),
			zap.Duration("after", res.Elapsed))
		return st, nil
	case wait.Aborted:
		return last, ctx.Err()
	default:
		return last, &NotReadyError{Name: name, Timeout: timeout, Last: last, LastErr: res.LastErr}
	}
}
