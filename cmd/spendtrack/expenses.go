package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/mmynk/spendtrack/internal/app"
	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/synchronizer"
)

// parseDay reads YYYY-MM-DD as noon UTC; empty means now.
func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.Add(12 * time.Hour), nil
}

func printExpenses(w io.Writer, expenses []models.Expense, format func(float64) string) {
	if len(expenses) == 0 {
		fmt.Fprintln(w, "No expenses yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAMOUNT\tCATEGORY\tREASON\tID")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Date.Local().Format(time.DateOnly), format(e.Amount), e.Category, e.Reason, e.ID)
	}
	tw.Flush()
}

type addCmd struct {
	env      *env
	amount   float64
	reason   string
	date     string
	category string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an expense" }
func (*addCmd) Usage() string {
	return "add -amount <n> -reason <text> [-date YYYY-MM-DD] [-category <name>]\n" +
		"Categories: " + strings.Join(models.CategoryNames(), ", ") + "\n"
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.amount, "amount", 0, "amount spent")
	f.StringVar(&c.reason, "reason", "", "vendor or short description")
	f.StringVar(&c.date, "date", "", "date of the expense (default today)")
	f.StringVar(&c.category, "category", string(models.CategoryOther), "expense category")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date, err := parseDay(c.date, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	category, ok := models.ParseCategory(c.category)
	if !ok {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	id, err := a.Expenses.Add(ctx, models.ExpenseInput{
		Amount:   c.amount,
		Reason:   c.reason,
		Date:     date,
		Category: category,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Added %s %s (%s)\n", a.Settings.FormatCurrency(c.amount), c.reason, id)
	return subcommands.ExitSuccess
}

type rmCmd struct {
	env *env
}

func (*rmCmd) Name() string             { return "rm" }
func (*rmCmd) Synopsis() string         { return "delete expenses by id" }
func (*rmCmd) Usage() string            { return "rm <id>...\n" }
func (*rmCmd) SetFlags(f *flag.FlagSet) {}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	for _, id := range f.Args() {
		if err := a.Expenses.Remove(ctx, id); err != nil {
			return fail(err)
		}
		fmt.Println("Removed", id)
	}
	return subcommands.ExitSuccess
}

type lsCmd struct {
	env *env
}

func (*lsCmd) Name() string             { return "ls" }
func (*lsCmd) Synopsis() string         { return "list expenses, newest first" }
func (*lsCmd) Usage() string            { return "ls\n" }
func (*lsCmd) SetFlags(f *flag.FlagSet) {}

func (c *lsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if !a.Expenses.IsInitialized() {
		return fail(synchronizer.ErrNotSignedIn)
	}
	printExpenses(os.Stdout, a.Expenses.List(), a.Settings.FormatCurrency)
	return subcommands.ExitSuccess
}

type watchCmd struct {
	env *env
}

func (*watchCmd) Name() string             { return "watch" }
func (*watchCmd) Synopsis() string         { return "print the expense list whenever it changes" }
func (*watchCmd) Usage() string            { return "watch\n" }
func (*watchCmd) SetFlags(f *flag.FlagSet) {}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	a.Expenses.OnError(func(err error) {
		fmt.Fprintln(os.Stderr, synchronizer.UserMessage(err))
	})
	a.Expenses.OnChange(func(s synchronizer.Snapshot) {
		fmt.Printf("\n[%s] %s mode\n", time.Now().Format(time.TimeOnly), s.Mode)
		printExpenses(os.Stdout, s.Expenses, a.Settings.FormatCurrency)
	})
	printExpenses(os.Stdout, a.Expenses.List(), a.Settings.FormatCurrency)

	<-ctx.Done()
	return subcommands.ExitSuccess
}

type scanCmd struct {
	env  *env
	save bool
}

func (*scanCmd) Name() string     { return "scan" }
func (*scanCmd) Synopsis() string { return "prefill an expense from a receipt photo" }
func (*scanCmd) Usage() string    { return "scan [-save] <image>\n" }

func (c *scanCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.save, "save", false, "record the draft when it is complete")
}

func (c *scanCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	draft, err := a.Scan(ctx, f.Arg(0))
	if err != nil {
		if errors.Is(err, app.ErrScanDisabled) {
			return fail(err)
		}
		fmt.Fprintln(os.Stderr, synchronizer.UserMessage(err))
	}

	fmt.Printf("Amount:   %s\n", a.Settings.FormatCurrency(draft.Amount))
	fmt.Printf("Reason:   %s\n", draft.Reason)
	fmt.Printf("Date:     %s\n", draft.Date.Local().Format(time.DateOnly))
	fmt.Printf("Category: %s\n", draft.Category)

	if !c.save {
		return subcommands.ExitSuccess
	}
	if err := draft.Input().Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Draft is incomplete, add it manually:", synchronizer.UserMessage(err))
		return subcommands.ExitFailure
	}
	id, err := a.Expenses.Add(ctx, draft.Input())
	if err != nil {
		return fail(err)
	}
	fmt.Println("Added", id)
	return subcommands.ExitSuccess
}
