package cmds

import (
	"time"

	"github.com/go-go-golems/chatwidget/pkg/mockbackend"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeMockCommand(app *App) *cobra.Command {
	var (
		addr      string
		wordDelay time.Duration
		initial   string
	)
	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run a local backend that echoes questions, for offline use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := mockbackend.New(
				mockbackend.WithWordDelay(wordDelay),
				mockbackend.WithPrompt(initial),
				mockbackend.WithLogger(log.Logger),
			)
			return s.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "Listen address")
	cmd.Flags().DurationVar(&wordDelay, "word-delay", 80*time.Millisecond, "Pause between streamed words")
	cmd.Flags().StringVar(&initial, "prompt", mockbackend.DefaultPrompt, "Initial prompt")
	return cmd
}
