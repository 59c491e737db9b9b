package cmds

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/chatrunner"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/go-go-golems/chatwidget/pkg/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newChatCommand(app *App) *cobra.Command {
	var (
		echo      bool
		minimized bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logging.InitForTUI(app.Settings.Log)

			t, err := app.transport(echo)
			if err != nil {
				return err
			}
			bus, err := app.openBus(ctx)
			if err != nil {
				return err
			}
			if bus != nil {
				defer closeQuietly("bus", bus)
			}
			turns, err := app.openTurnLog()
			if err != nil {
				return err
			}
			if turns != nil {
				defer closeQuietly("turn log", turns)
			}

			b := chatrunner.NewChatBuilder().
				WithContext(ctx).
				WithTransport(t).
				WithMode(chatrunner.RunModeChat).
				WithUIOptions(
					ui.WithTitle(app.Settings.Title),
					ui.WithQuickReplies(app.Settings.QuickReplies),
					ui.WithStartMinimized(minimized),
				).
				WithProgramOptions(tea.WithAltScreen())
			if bus != nil {
				b = b.WithBus(bus)
			}
			if turns != nil {
				b = b.WithTurnLog(turns)
			}
			session, err := b.Build()
			if err != nil {
				return err
			}
			log.Info().Str("session_id", session.Runner().SessionID()).Msg("chat started")
			return session.Run()
		},
	}
	cmd.Flags().BoolVar(&echo, "echo", false, "Answer locally by echoing the question (no backend)")
	cmd.Flags().BoolVar(&minimized, "minimized", false, "Start with the widget collapsed to its launcher")
	return cmd
}
