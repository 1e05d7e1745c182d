package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

const passwordEnv = "SPENDTRACK_PASSWORD"

func password(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}
	return "", errors.New("password required: pass -password or set " + passwordEnv)
}

type signupCmd struct {
	env                   *env
	email, name, password string
}

func (*signupCmd) Name() string     { return "signup" }
func (*signupCmd) Synopsis() string { return "create an account and sign in" }
func (*signupCmd) Usage() string {
	return "signup -email <email> [-name <display name>] [-password <password>]\n"
}

func (c *signupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.name, "name", "", "display name")
	f.StringVar(&c.password, "password", "", "password (or "+passwordEnv+")")
}

func (c *signupCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	pw, err := password(c.password)
	if err != nil || c.email == "" {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	user, err := a.Session.SignUp(ctx, c.email, c.name, pw)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Signed up as %s (%s)\n", user.DisplayName, user.Email)
	return subcommands.ExitSuccess
}

type loginCmd struct {
	env             *env
	email, password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in to an existing account" }
func (*loginCmd) Usage() string {
	return "login -email <email> [-password <password>]\n"
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.password, "password", "", "password (or "+passwordEnv+")")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	pw, err := password(c.password)
	if err != nil || c.email == "" {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	user, err := a.Session.SignIn(ctx, c.email, pw)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Signed in as %s (%s)\n", user.DisplayName, user.Email)
	return subcommands.ExitSuccess
}

type logoutCmd struct {
	env *env
}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "sign out on this device" }
func (*logoutCmd) Usage() string            { return "logout\n" }
func (*logoutCmd) SetFlags(f *flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.env.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if err := a.Session.SignOut(); err != nil {
		return fail(err)
	}
	fmt.Println("Signed out")
	return subcommands.ExitSuccess
}
