package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/xela07ax/shuma-dashboard/internal/infra"
	"github.com/xela07ax/shuma-dashboard/internal/route"
	"github.com/xela07ax/shuma-dashboard/internal/runtime"
	"github.com/xela07ax/shuma-dashboard/internal/tui"
)

func newTUICmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the dashboard in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			// stdout/stderr заняты экраном
			if cfg.Logger.Output == "" || cfg.Logger.Output == "stderr" || cfg.Logger.Output == "stdout" {
				cfg.Logger.Output = logFile
			}
			logger, err := infra.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var bridge *tui.Bridge
			a, err := buildApp(ctx, cfg, runtime.Options{
				Location: route.NewMemoryLocation("", "#"+cfg.Engine.InitialTab),
				OnRedirect: func(loginURL string) {
					if bridge != nil {
						bridge.Redirect(loginURL)
					}
				},
			}, logger)
			if err != nil {
				return err
			}

			program := tea.NewProgram(tui.NewModel(a.rt), tea.WithAltScreen(), tea.WithReportFocus())
			bridge = tui.NewBridge(program)
			detach := bridge.Attach(a.rt)

			// Send блокируется до старта программы, поэтому монтирование в фоне
			go a.start(ctx)

			_, runErr := program.Run()
			detach()
			cancel()
			a.stop()
			return runErr
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "shuma-dashboard.log", "where to write logs while the terminal UI is running")
	return cmd
}
