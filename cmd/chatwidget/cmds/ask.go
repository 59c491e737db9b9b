package cmds

import (
	"os"
	"strings"

	"github.com/go-go-golems/chatwidget/pkg/chatrunner"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/go-go-golems/chatwidget/pkg/ui"
	"github.com/spf13/cobra"
)

func newAskCommand(app *App) *cobra.Command {
	var (
		echo        bool
		output      string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask one question and print the streamed answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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

			mode := chatrunner.RunModeBlocking
			if interactive {
				mode = chatrunner.RunModeInteractive
			}

			b := chatrunner.NewChatBuilder().
				WithContext(ctx).
				WithTransport(t).
				WithMode(mode).
				WithQuestion(strings.Join(args, " ")).
				WithOutputWriter(cmd.OutOrStdout()).
				WithOutputFormat(chatrunner.OutputFormat(output))
			if interactive {
				// the widget may follow the answer
				b = b.WithUIOptions(
					ui.WithTitle(app.Settings.Title),
					ui.WithQuickReplies(app.Settings.QuickReplies),
				).WithTerminal(os.Stdin, os.Stderr, func() bool {
					return stdinIsTerminal() && stdoutIsTerminal()
				}).WithOnChatStart(func() {
					// stderr logs would draw over the widget
					logging.InitForTUI(app.Settings.Log)
				})
			}
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
			return session.Run()
		},
	}
	cmd.Flags().BoolVar(&echo, "echo", false, "Answer locally by echoing the question (no backend)")
	cmd.Flags().StringVarP(&output, "output", "o", string(chatrunner.OutputText), "Output format: text, json, yaml or html")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Offer to continue in the chat widget after the answer")
	return cmd
}
