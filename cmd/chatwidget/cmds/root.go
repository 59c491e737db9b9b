// Package cmds holds the chatwidget command tree.
package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/chatwidget/pkg/config"
	"github.com/go-go-golems/chatwidget/pkg/events"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/go-go-golems/chatwidget/pkg/transport"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// App carries the settings resolved once flags are parsed.
type App struct {
	Settings config.Settings
}

func NewRootCommand() *cobra.Command {
	app := &App{Settings: config.Defaults()}

	rootCmd := &cobra.Command{
		Use:           "chatwidget",
		Short:         "chatwidget is a terminal chat client for the Pharmacy Bali assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// settings depend on --config and co, which are only parsed now
			configFile, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			v, err := config.NewViper(configFile)
			if err != nil {
				return err
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			s, err := config.Load(v)
			if err != nil {
				return err
			}
			app.Settings = s
			logging.Init(s.Log)
			log.Debug().Str("base_url", s.BaseURL).Bool("redis", s.Redis.Enabled).Msg("settings loaded")
			return nil
		},
	}
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newChatCommand(app),
		newAskCommand(app),
		newPromptCommand(app),
		newTurnsCommand(app),
		newServeMockCommand(app),
	)
	return rootCmd
}

// transport returns the offline echo transport or the HTTP one.
func (a *App) transport(echo bool) (transport.Transport, error) {
	if echo {
		return transport.Echo(transport.DefaultEchoDelay), nil
	}
	return transport.NewHTTPTransport(a.Settings.BaseURL)
}

// openBus returns nil when redis is disabled; the chat session then owns an
// in-memory bus.
func (a *App) openBus(ctx context.Context) (*events.Bus, error) {
	if !a.Settings.Redis.Enabled {
		return nil, nil
	}
	return events.NewBus(ctx, a.Settings.Redis)
}

// openTurnLog returns nil when no turn log is configured.
func (a *App) openTurnLog() (turnlog.Store, error) {
	if !a.Settings.TurnLog.Enabled() {
		return nil, nil
	}
	dsn, err := a.Settings.TurnLog.ResolveDSN()
	if err != nil {
		return nil, err
	}
	store, err := turnlog.NewSQLiteStore(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open turn log")
	}
	return store, nil
}

func closeQuietly(what string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Str("what", what).Msg("close failed")
	}
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func stdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// terminalWidth falls back to 80 columns when stdout is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
