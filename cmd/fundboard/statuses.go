package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/researchfund/fundboard/config"
	"github.com/researchfund/fundboard/internal/binding"
	"github.com/researchfund/fundboard/internal/poller"
	"github.com/researchfund/fundboard/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	codeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// statusesCmd fetches the status list once and prints it.
var statusesCmd = &cobra.Command{
	Use:   "statuses",
	Short: "Print the backend's status list",
	Long: `Fetch the status list from the configured backend and print it as a table.

With --id, only the matching status is printed; the command fails if no
status has that id.

Example:
  fundboard statuses -c config.yaml
  fundboard statuses -c config.yaml --id 3`,
	RunE: runStatuses,
}

func init() {
	rootCmd.AddCommand(statusesCmd)

	statusesCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	statusesCmd.Flags().String("id", "", "print only the status with this id")
	_ = statusesCmd.MarkFlagRequired("config")
}

func runStatuses(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	id, _ := cmd.Flags().GetString("id")

	logger := newLogger(slog.LevelWarn)

	client := poller.NewClient()
	defer client.Close()

	fetcher, err := poller.NewStatusFetcher(client, cfg.Status.URL, cfg.Status.Headers,
		cfg.Status.Envelope, cfg.Status.Timeout.Duration())
	if err != nil {
		return err
	}
	src := store.NewStatusStore(fetcher, store.WithLogger(logger))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b := binding.Activate(ctx, src, binding.WithLogger(logger))
	defer b.Deactivate()

	list, err := b.Refetch(ctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("status fetch failed"))
		return err
	}

	out := cmd.OutOrStdout()
	if id == "" {
		renderStatuses(out, list)
		return nil
	}

	rec, ok := b.RecordByID(id)
	if !ok {
		return fmt.Errorf("no status with id %q", id)
	}
	renderStatuses(out, store.List{rec})
	return nil
}

// renderStatuses writes list as an aligned ID/CODE/NAME table.
func renderStatuses(w io.Writer, list store.List) {
	if len(list) == 0 {
		fmt.Fprintln(w, idStyle.Render("no statuses"))
		return
	}

	ids := make([]string, len(list))
	idWidth, codeWidth := len("ID"), len("CODE")
	for i, rec := range list {
		ids[i] = strconv.FormatInt(rec.ID, 10)
		idWidth = max(idWidth, lipgloss.Width(ids[i]))
		codeWidth = max(codeWidth, lipgloss.Width(rec.Code))
	}

	row := func(id, code, name string, idSt, codeSt, nameSt lipgloss.Style) string {
		return strings.Join([]string{
			idSt.Width(idWidth).Render(id),
			codeSt.Width(codeWidth).Render(code),
			nameSt.Render(name),
		}, "  ")
	}

	fmt.Fprintln(w, row("ID", "CODE", "NAME", headerStyle, headerStyle, headerStyle))
	for i, rec := range list {
		fmt.Fprintln(w, row(ids[i], rec.Code, rec.Name, idStyle, codeStyle, lipgloss.NewStyle()))
	}
}
