package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/chatwidget/pkg/logging"
	"github.com/go-go-golems/chatwidget/pkg/prompt"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/go-go-golems/chatwidget/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPromptCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Read or replace the assistant's system prompt",
	}
	cmd.AddCommand(
		newPromptGetCommand(app),
		newPromptSetCommand(app),
		newPromptEditCommand(app),
	)
	return cmd
}

func newPromptGetCommand(app *App) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := prompt.NewClient(app.Settings.BaseURL)
			if err != nil {
				return err
			}
			p, err := c.Get(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw || !stdoutIsTerminal() {
				_, err = fmt.Fprintln(out, p)
				return err
			}
			r, err := render.NewTerminal(terminalWidth())
			if err != nil {
				_, err = fmt.Fprintln(out, p)
				return err
			}
			_, err = io.WriteString(out, r.Render(p))
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the prompt without markdown rendering")
	return cmd
}

func newPromptSetCommand(app *App) *cobra.Command {
	var (
		file string
		yes  bool
	)
	cmd := &cobra.Command{
		Use:   "set [prompt...]",
		Short: "Replace the prompt with the arguments, a file, or stdin ('-')",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptText(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			if !yes && stdinIsTerminal() {
				confirmed, err := confirmSave(text)
				if err != nil {
					return err
				}
				if !confirmed {
					_, err = fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
					return err
				}
			}

			c, err := prompt.NewClient(app.Settings.BaseURL)
			if err != nil {
				return err
			}
			msg, err := c.Save(cmd.Context(), text)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the prompt from a file ('-' for stdin)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func promptText(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", errors.New("pass the prompt as arguments or --file, not both")
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read prompt from stdin")
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrapf(err, "read prompt file %s", file)
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", errors.New("no prompt given")
	}
}

func confirmSave(text string) (bool, error) {
	preview := text
	if len(preview) > 200 {
		preview = strings.ToValidUTF8(preview[:200], "") + "..."
	}
	confirmed := false
	err := huh.NewConfirm().
		Title("Replace the assistant prompt?").
		Description(preview).
		Affirmative("Save").
		Negative("Cancel").
		Value(&confirmed).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return confirmed, errors.Wrap(err, "confirmation")
}

func newPromptEditCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the prompt in a full-screen editor (ctrl+s saves)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.InitForTUI(app.Settings.Log)
			c, err := prompt.NewClient(app.Settings.BaseURL)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p := tea.NewProgram(ui.NewPromptEditor(ctx, c), tea.WithContext(ctx), tea.WithAltScreen())
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}
