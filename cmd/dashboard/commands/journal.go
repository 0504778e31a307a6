package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/xela07ax/shuma-dashboard/internal/console/service"
	"github.com/xela07ax/shuma-dashboard/internal/infra"
	"github.com/xela07ax/shuma-dashboard/internal/repository/postgres"
)

func newJournalCmd() *cobra.Command {
	var (
		tab   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent tab refreshes from the refresh journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is not configured: the journal is only written to the log")
			}

			repo, err := postgres.NewJournalRepo(cfg.Database.URL, 1)
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			entries, err := service.NewJournalService(repo).FetchRecent(ctx, tab, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "AT\tTAB\tREASON\tOUTCOME\tFETCH\tRENDER\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0fms\t%.0fms\t%s\n",
					e.At.Local().Format(time.DateTime), e.Tab, e.Reason, e.Outcome, e.FetchMs, e.RenderMs, e.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&tab, "tab", "", "only this tab (monitoring, ip-bans, status, config, tuning)")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries")
	return cmd
}
