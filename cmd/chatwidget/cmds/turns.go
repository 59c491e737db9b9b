package cmds

import (
	"encoding/json"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/go-go-golems/chatwidget/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTurnsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turns",
		Short: "Inspect the turn log",
	}
	cmd.AddCommand(newTurnsListCommand(app), newTurnsBrowseCommand(app))
	return cmd
}

func newTurnsBrowseCommand(app *App) *cobra.Command {
	var (
		sessionID string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse recorded turns in a split-pane viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openTurnLog()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no turn log configured (use --turn-log)")
			}
			defer closeQuietly("turn log", store)

			records, err := store.List(cmd.Context(), turnlog.Query{SessionID: sessionID, Limit: limit})
			if err != nil {
				return err
			}
			logging.InitForTUI(app.Settings.Log)
			p := tea.NewProgram(ui.NewTurnBrowser(records), tea.WithContext(cmd.Context()), tea.WithAltScreen())
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Only turns of this session")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of turns (default 200)")
	return cmd
}

func newTurnsListCommand(app *App) *cobra.Command {
	var (
		sessionID string
		outcome   string
		since     time.Duration
		limit     int
		output    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded turns, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openTurnLog()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no turn log configured (use --turn-log)")
			}
			defer closeQuietly("turn log", store)

			q := turnlog.Query{
				SessionID: sessionID,
				Outcome:   turnlog.Outcome(outcome),
				Limit:     limit,
			}
			if since > 0 {
				q.SinceMs = time.Now().Add(-since).UnixMilli()
			}
			records, err := store.List(cmd.Context(), q)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(records), "write json")
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(records); err != nil {
					return errors.Wrap(err, "write yaml")
				}
				return enc.Close()
			default:
				return errors.Errorf("invalid output format: %s", output)
			}
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Only turns of this session")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only delivered or failed turns")
	cmd.Flags().DurationVar(&since, "since", 0, "Only turns finished within this window (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of turns (default 200)")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml or json")
	return cmd
}
