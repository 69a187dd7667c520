package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/notify"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/repository"
	"medic-workbook/backend/internal/service"
	"medic-workbook/backend/pkg/database"
	"medic-workbook/backend/pkg/jwt"
	applogger "medic-workbook/backend/pkg/logger"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "workbookctl",
		Short:         "Maintenance commands for the training workbook service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")

	root.AddCommand(
		newPhasesCmd(),
		newTokenCmd(opts),
		newDiagnoseCmd(opts),
		newFixCmd(opts),
		newRecalculateAllCmd(opts),
	)
	return root
}

// ── phases ──

func newPhasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "Print the phase catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			phases, err := phase.New(phase.DefaultDefinitions())
			if err != nil {
				return err
			}
			return printPhases(cmd.OutOrStdout(), phases)
		},
	}
}

func printPhases(out io.Writer, phases *phase.Map) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tPHASE\tFORM TYPE\tREQUIRED\tADDENDA\tTITLE")
	for i, def := range phases.Phases() {
		for _, slot := range def.Forms {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%t\t%s\n", i+1, def.Name, slot.Type, slot.Required, slot.AllowsAddenda, def.Title)
		}
	}
	fmt.Fprintf(tw, "\t\ttotal\t%d\t\t\n", phases.TotalForms())
	return tw.Flush()
}

// ── token ──

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			mgr := jwt.NewManager(&cfg.Auth)
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL
			}
			token, err := mgr.GenerateAccessTokenTTL(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (student id for students)")
	cmd.Flags().StringVar(&role, "role", jwt.RoleStudent, "student | coordinator | admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.access_token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ── reconciliation ──

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose <student-id>",
		Short: "Compare stored progress with a recomputation from submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts, func(ctx context.Context, svc *service.Service) error {
				diag, err := svc.Reconcile.Diagnose(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), diag)
			})
		},
	}
}

func newFixCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <student-id>",
		Short: "Rewrite a student's progress rows from submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts, func(ctx context.Context, svc *service.Service) error {
				result, err := svc.Reconcile.Fix(ctx, args[0])
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("fix for %s failed after %d attempts", args[0], result.Attempts)
				}
				return nil
			})
		},
	}
}

func newRecalculateAllCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "recalculate-all",
		Short: "Recompute progress for every known student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), opts, func(ctx context.Context, svc *service.Service) error {
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				result, err := svc.Reconcile.RecalculateAll(ctx)
				if result != nil {
					if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				if result.Failed > 0 {
					return fmt.Errorf("%d of %d students failed", result.Failed, result.Students)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	return cmd
}

// withServices wires config, logger, database and services for one command.
// SIGINT/SIGTERM cancel the context handed to fn.
func withServices(parent context.Context, opts *rootOptions, fn func(ctx context.Context, svc *service.Service) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	phases, err := phase.New(phase.DefaultDefinitions())
	if err != nil {
		return fmt.Errorf("invalid phase map: %w", err)
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	svc := service.NewService(cfg, repository.NewRepository(db), phases, notify.Nop{}, logger)
	logger.Debug("workbookctl services ready", zap.String("config", opts.configPath))
	return fn(ctx, svc)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
