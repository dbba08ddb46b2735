// Package cli implements the bizbilling operator commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bizbilling/internal/app"
	"github.com/odyssey-erp/bizbilling/internal/fx"
	"github.com/odyssey-erp/bizbilling/internal/invoicing"
	"github.com/odyssey-erp/bizbilling/internal/metrics"
)

var version = "dev"

// InvoiceService is the invoicing surface used by the commands.
type InvoiceService interface {
	GetStatusDetails(ctx context.Context, id uuid.UUID) (invoicing.StatusDetails, error)
	ResyncPaidAmount(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error)
}

// DashboardService is the metrics surface used by the commands.
type DashboardService interface {
	Dashboard(ctx context.Context, businessID uuid.UUID) (metrics.Dashboard, error)
	Refresh(ctx context.Context, businessID uuid.UUID) (metrics.Dashboard, error)
}

// Backend holds the connected engine services.
type Backend struct {
	Invoices   InvoiceService
	Dashboards DashboardService
	Close      func()
}

// Options replaces the default collaborators, mostly for tests.
type Options struct {
	Backend   func(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*Backend, error)
	Jobs      func(cfg *app.Config) (JobsRunner, error)
	Converter func(cfg *app.Config, logger *slog.Logger) fx.Converter
	Stdout    io.Writer
	Stderr    io.Writer
}

type runtime struct {
	opts     Options
	envFile  string
	json     bool
	cfg      *app.Config
	logger   *slog.Logger
	settings app.Settings
	backend  *Backend
}

// NewRootCmd builds the command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Backend == nil {
		opts.Backend = connectBackend
	}
	if opts.Jobs == nil {
		opts.Jobs = func(cfg *app.Config) (JobsRunner, error) { return NewJobsCLI(cfg.RedisOpts()), nil }
	}
	if opts.Converter == nil {
		opts.Converter = func(cfg *app.Config, logger *slog.Logger) fx.Converter {
			return app.NewConverter(cfg, nil, logger)
		}
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:           "bizbilling",
		Short:         "Operate the business invoicing and payment reconciliation engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.backend != nil && rt.backend.Close != nil {
				rt.backend.Close()
			}
		},
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolVar(&rt.json, "json", false, "print JSON instead of text")

	root.AddCommand(
		newStatusCmd(rt),
		newResyncCmd(rt),
		newDashboardCmd(rt),
		newJobsCmd(rt),
		newFXCmd(rt),
	)
	return root
}

// Execute runs the CLI with default collaborators.
func Execute(ctx context.Context) int {
	root := NewRootCmd(Options{})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func (rt *runtime) init() error {
	if rt.envFile != "" {
		if err := godotenv.Load(rt.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", rt.envFile, err)
		}
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.settings = cfg.Settings()
	rt.logger = app.NewLoggerTo(cfg, rt.opts.Stderr)
	return nil
}

func (rt *runtime) connect(ctx context.Context) (*Backend, error) {
	if rt.backend != nil {
		return rt.backend, nil
	}
	b, err := rt.opts.Backend(ctx, rt.cfg, rt.logger)
	if err != nil {
		return nil, err
	}
	rt.backend = b
	return b, nil
}

func (rt *runtime) printJSON(v any) error {
	enc := json.NewEncoder(rt.opts.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.opts.Stdout, format, args...)
}

func connectBackend(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*Backend, error) {
	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Invoices:   services.Invoicing,
		Dashboards: services.Metrics,
		Close:      services.Close,
	}, nil
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}
	return id, nil
}
