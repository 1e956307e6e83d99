package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/chronicler/internal/app"
	"github.com/dwizi/chronicler/internal/calendar"
	"github.com/dwizi/chronicler/internal/config"
	"github.com/dwizi/chronicler/internal/store"
	"github.com/dwizi/chronicler/internal/tui"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "chronicler",
		Short:         "Chronicler summarizes the Gaiartos role-play channels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newSummarizeCommand(logger))
	root.AddCommand(newDateCommand())
	root.AddCommand(newRunsCommand())
	root.AddCommand(newTUICommand(logger))
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and answer summary triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newSummarizeCommand(logger *slog.Logger) *cobra.Command {
	var (
		postChannel string
		requestedBy string
	)
	command := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize the configured channels once",
		Long:  "Summarize the configured channels once. The summary is printed, or posted to a channel with --post.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := app.New(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if strings.TrimSpace(postChannel) == "" {
				result, err := runtime.Summarize(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
				return nil
			}
			result, err := runtime.Post(ctx, postChannel, requestedBy)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d/%d chunks sent\n", result.RunID, result.Delivery.Sent(), result.Delivery.Total)
			return err
		},
	}
	command.Flags().StringVar(&postChannel, "post", "", "channel id to post the summary into")
	command.Flags().StringVar(&requestedBy, "requested-by", "", "name recorded with the run")
	return command
}

func newDateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "date [YYYY-MM-DD HH:MM:SS]",
		Short:   "Convert a UTC timestamp into a Gaiartian date",
		Example: `chronicler date "2024-03-20 12:00:00"`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			cal, err := calendar.New(calendar.Config{Epoch: cfg.CalendarEpoch, Months: cfg.CalendarMonths})
			if err != nil {
				return err
			}
			input := time.Now().UTC().Format(calendar.InputLayout)
			if len(args) == 1 {
				input = args[0]
			}
			date, err := cal.Parse(input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), date.String())
			return nil
		},
	}
}

func newRunsCommand() *cobra.Command {
	var limit int
	command := &cobra.Command{
		Use:   "runs",
		Short: "List recent summary runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, err := openLedger(cmd.Context(), config.FromEnv())
			if err != nil {
				return err
			}
			defer sqlStore.Close()
			runs, err := sqlStore.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tSTARTED\tSOURCE\tCHANNEL\tSTATUS\tRECENT\tOLDER\tCHUNKS\tERROR")
			for _, run := range runs {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					run.ID,
					run.StartedAt.UTC().Format(time.RFC3339),
					run.TriggerSource,
					run.ChannelID,
					run.Status,
					run.RecentCount,
					run.OlderCount,
					run.ChunkCount,
					run.ErrorMessage,
				)
			}
			return writer.Flush()
		},
	}
	command.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return command
}

func newTUICommand(logger *slog.Logger) *cobra.Command {
	var (
		limit   int
		refresh time.Duration
	)
	command := &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard over recent summary runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			cal, err := calendar.New(calendar.Config{Epoch: cfg.CalendarEpoch, Months: cfg.CalendarMonths})
			if err != nil {
				return err
			}
			sqlStore, err := openLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer sqlStore.Close()
			return tui.Run(tui.Options{
				Environment: cfg.Environment,
				Channels:    cfg.SummaryChannelIDs,
				Schedule:    cfg.ScheduleExpression,
				Limit:       limit,
				Refresh:     refresh,
			}, sqlStore, cal, logger)
		},
	}
	command.Flags().IntVar(&limit, "limit", 50, "number of runs to load")
	command.Flags().DurationVar(&refresh, "refresh", 15*time.Second, "reload interval")
	return command
}

// openLedger opens the run store read side without building the runtime.
func openLedger(ctx context.Context, cfg config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(ctx); err != nil {
		sqlStore.Close()
		return nil, err
	}
	return sqlStore, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
