package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/report"
	"github.com/mmynk/spendtrack/internal/synchronizer"
)

type reportCmd struct {
	env    *env
	period string
	csv    bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "summarize spending by category and over time" }
func (*reportCmd) Usage() string {
	ranges := make([]string, len(report.Ranges))
	for i, r := range report.Ranges {
		ranges[i] = string(r)
	}
	return "report [-range " + strings.Join(ranges, "|") + "] [-csv]\n"
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "range", string(report.Range30Day), "reporting period")
	f.BoolVar(&c.csv, "csv", false, "write CSV to stdout instead of a formatted report")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, err := report.ParseRange(c.period)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if !a.Expenses.IsInitialized() {
		return fail(synchronizer.ErrNotSignedIn)
	}

	summary := report.Summarize(a.Expenses.List(), r, time.Now())
	if c.csv {
		if err := report.WriteCSV(os.Stdout, summary, time.Local); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	settings := a.Settings.Get()
	renderer, err := glamour.NewTermRenderer(styleFor(settings.Theme), glamour.WithWordWrap(100))
	if err != nil {
		return fail(err)
	}
	out, err := renderer.Render(report.Markdown(summary, settings.Currency))
	if err != nil {
		return fail(err)
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}

// styleFor maps the theme preference onto a glamour style.
func styleFor(theme models.Theme) glamour.TermRendererOption {
	switch theme {
	case models.ThemeDark:
		return glamour.WithStandardStyle("dark")
	case models.ThemeLight:
		return glamour.WithStandardStyle("light")
	}
	return glamour.WithAutoStyle()
}
