package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kmbot/internal/backend"
	"kmbot/internal/cli"
	"kmbot/internal/config"
	"kmbot/internal/core"
	"kmbot/internal/log"
	"kmbot/internal/services"
	gsheet "kmbot/internal/sheets/google"
	"kmbot/internal/storage"
	"kmbot/internal/worker"
)

// app is the state shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "kmbotctl",
		Short:         "Administer the kmbot driver ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			a.cfg = config.Load()
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				a.cfg.SQLiteDBPath = db
			}
			a.logger = cli.SetupLogger(a.cfg, "cli")
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")

	root.AddCommand(newSummaryCmd(a), newSendCmd(a), newMigrateCmd(a), newSyncCmd(a))
	return root
}

// openBot builds the reply router over the configured backend.
func (a *app) openBot(ctx context.Context) (*services.ReplyRouter, func() error, error) {
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	// No broker from the CLI; pending entries are exported by the worker sweep
	bcfg.AMQPURL = ""
	bcfg.SummaryCacheTTL = 0
	res, err := backend.NewFactory(a.logger, nil).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	bot, err := cli.NewBot(a.cfg, res.Store, nil, nil)
	if err != nil {
		_ = res.Cleanup()
		return nil, nil, err
	}
	return bot, res.Cleanup, nil
}

func (a *app) report(cmd *cobra.Command, user, date string) (string, error) {
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	bot, cleanup, err := a.openBot(cmd.Context())
	if err != nil {
		return "", err
	}
	defer cleanup()

	d := bot.Today()
	if date != "" {
		if d, err = core.ParseDate(date); err != nil {
			return "", fmt.Errorf("parse --date %q: %w", date, err)
		}
	}
	return bot.Summary(cmd.Context(), user, d)
}

func newSummaryCmd(a *app) *cobra.Command {
	var user, date string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the daily summary of a driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.report(cmd, user, date)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "driver address, e.g. whatsapp:+5511999990000")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	return cmd
}

func newSendCmd(a *app) *cobra.Command {
	var user, date string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the daily summary to a driver over WhatsApp",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.report(cmd, user, date)
			if err != nil {
				return err
			}
			if err := cli.NewNotifier(a.cfg, a.logger).Send(cmd.Context(), user, report); err != nil {
				return fmt.Errorf("send summary: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Enviado")
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "driver address, e.g. whatsapp:+5511999990000")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			if err := repo.Close(); err != nil {
				return err
			}
			version, dirty, err := storage.SchemaVersion(storage.DSN(a.cfg.SQLiteDBPath))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return err
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Export pending entries to Google Sheets once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.SheetsEnabled() {
				return fmt.Errorf("GOOGLE_SPREADSHEET_ID is not set")
			}
			ctx := cmd.Context()
			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			writer, err := gsheet.New(ctx, gsheet.Options{
				SpreadsheetID: a.cfg.GoogleSpreadsheetID,
				RidesSheet:    a.cfg.GoogleRidesSheet,
				FuelsSheet:    a.cfg.GoogleFuelsSheet,
			})
			if err != nil {
				return err
			}
			synced, failed, err := worker.NewSyncWorker(repo, writer, nil, limit).ProcessPending(ctx, limit)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "synced %d, failed %d\n", synced, failed)
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum entries to export")
	return cmd
}
