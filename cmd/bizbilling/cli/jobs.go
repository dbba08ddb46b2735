package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bizbilling/jobs"
)

// JobsRunner triggers and inspects background jobs.
type JobsRunner interface {
	Trigger(ctx context.Context, name string, lookback time.Duration) (*asynq.TaskInfo, error)
	InspectQueues(ctx context.Context) ([]QueueStats, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the helpers against the given Redis connection.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, lookback time.Duration) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskMetricsWarmup:
		return c.client.EnqueueMetricsWarmup(ctx, jobs.MetricsWarmupPayload{LookbackMinutes: int(lookback / time.Minute)})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueues reports every worker queue, heaviest weight first.
func (c *JobsCLI) InspectQueues(ctx context.Context) ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	names := make([]string, 0, len(jobs.Queues))
	for name := range jobs.Queues {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return jobs.Queues[names[i]] > jobs.Queues[names[j]] })

	out := make([]QueueStats, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats := QueueStats{Queue: name}
		info, err := c.inspector.GetQueueInfo(name)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("jobs cli: inspect %s: %w", name, err)
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

func newJobsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var lookback time.Duration
	trigger := &cobra.Command{
		Use:   "trigger <task-type>",
		Short: "Enqueue a job now (supported: " + jobs.TaskMetricsWarmup + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := rt.opts.Jobs(rt.cfg)
			if err != nil {
				return err
			}
			defer runner.Close()
			info, err := runner.Trigger(cmd.Context(), args[0], lookback)
			if err != nil {
				return err
			}
			rt.printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().DurationVar(&lookback, "lookback", 24*time.Hour, "activity window for the metrics warmup")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := rt.opts.Jobs(rt.cfg)
			if err != nil {
				return err
			}
			defer runner.Close()
			queues, err := runner.InspectQueues(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				return rt.printJSON(queues)
			}
			for _, q := range queues {
				rt.printf("%-14s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
					q.Queue, q.Pending, q.Active, q.Scheduled, q.Retry, q.Archived)
			}
			return nil
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}
