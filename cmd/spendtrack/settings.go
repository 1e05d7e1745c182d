package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/mmynk/spendtrack/internal/models"
)

type settingsCmd struct {
	env                   *env
	name, currency, theme string
}

func (*settingsCmd) Name() string     { return "settings" }
func (*settingsCmd) Synopsis() string { return "show or change preferences" }
func (*settingsCmd) Usage() string {
	return "settings [-name <name>] [-currency <ISO code>] [-theme light|dark|system]\n"
}

func (c *settingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "display name")
	f.StringVar(&c.currency, "currency", "", "currency code, e.g. USD")
	f.StringVar(&c.theme, "theme", "", "color theme for this device")
}

func (c *settingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var patch models.SettingsPatch
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "name":
			patch.Name = &c.name
		case "currency":
			patch.Currency = &c.currency
		case "theme":
			theme := models.Theme(c.theme)
			patch.Theme = &theme
		}
	})

	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if !patch.Empty() {
		if err := a.Settings.SetSettings(ctx, patch); err != nil {
			return fail(err)
		}
	}

	s := a.Settings.Get()
	fmt.Printf("Mode:     %s\n", a.Resolver.State().Mode)
	fmt.Printf("Name:     %s\n", s.Name)
	fmt.Printf("Currency: %s (%s)\n", s.Currency, a.Settings.FormatCurrency(1234.5))
	fmt.Printf("Theme:    %s\n", s.Theme)
	return subcommands.ExitSuccess
}
