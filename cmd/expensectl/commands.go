package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"expensetracker/internal/client"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/syncstate"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `Usage: expensectl [-api URL] [-timeout D] <command> [flags]

Commands:
  list                              show every expense
  add    -amount -category -date -name -method -status
  update -id ID -amount -category -date -name -method -status
  delete -id ID
`

type command struct {
	name   string
	out    io.Writer
	errOut io.Writer
	ctrl   *syncstate.Controller
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, defaultAPI string, logger *applog.Logger, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("expensectl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	apiURL := global.String("api", defaultAPI, "base URL of the expense API")
	timeout := global.Duration("timeout", 10*time.Second, "per-request timeout")

	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return exitUsage
	}

	api := client.New(*apiURL, *timeout)
	cmd := &command{
		name:   rest[0],
		out:    stdout,
		errOut: stderr,
		ctrl:   syncstate.NewController(api, syncstate.NewStore(), logger.Logger),
	}

	switch cmd.name {
	case "list":
		return cmd.list(ctx, rest[1:])
	case "add":
		return cmd.add(ctx, rest[1:])
	case "update":
		return cmd.update(ctx, rest[1:])
	case "delete":
		return cmd.delete(ctx, rest[1:])
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd.name, usage)
		return exitUsage
	}
}

func (c *command) flags() *flag.FlagSet {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *command) list(ctx context.Context, args []string) int {
	if err := c.flags().Parse(args); err != nil {
		return exitUsage
	}
	if err := c.ctrl.Refresh(ctx); err != nil {
		c.fail(err)
		return exitError
	}
	return c.printRecords()
}

func (c *command) add(ctx context.Context, args []string) int {
	fs := c.flags()
	p := payloadFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	res, err := c.ctrl.Create(ctx, p.payload())
	return c.finish(res, err)
}

func (c *command) update(ctx context.Context, args []string) int {
	fs := c.flags()
	id := fs.String("id", "", "expense id")
	p := payloadFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(c.errOut, "update: -id is required")
		return exitUsage
	}
	res, err := c.ctrl.Update(ctx, *id, p.payload())
	return c.finish(res, err)
}

func (c *command) delete(ctx context.Context, args []string) int {
	fs := c.flags()
	id := fs.String("id", "", "expense id")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(c.errOut, "delete: -id is required")
		return exitUsage
	}
	res, err := c.ctrl.Delete(ctx, *id)
	return c.finish(res, err)
}

// finish reports a mutation outcome followed by the refreshed list.
func (c *command) finish(res client.Result, err error) int {
	if err != nil {
		c.fail(err)
		return exitError
	}

	msg := res.Message
	if res.ID != "" && !strings.Contains(msg, res.ID) {
		msg = fmt.Sprintf("%s (id %s)", msg, res.ID)
	}
	fmt.Fprintln(c.out, msg)

	if state := c.ctrl.Store().State(); state.LoadErr != nil {
		fmt.Fprintf(c.errOut, "warning: could not reload expenses: %v\n", state.LoadErr)
		return exitOK
	}
	fmt.Fprintln(c.out)
	return c.printRecords()
}

func (c *command) fail(err error) {
	fmt.Fprintf(c.errOut, "%s: %v\n", c.name, err)

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		fmt.Fprintf(c.errOut, "invalid fields: %s\n", strings.Join(apiErr.Fields, ", "))
	}
}

func (c *command) printRecords() int {
	if err := writeTable(c.out, c.ctrl.Store().State().Records); err != nil {
		fmt.Fprintf(c.errOut, "%s: write output: %v\n", c.name, err)
		return exitError
	}
	return exitOK
}

type payloadValues struct {
	amount, category, date, name, method, status *string
}

func payloadFlags(fs *flag.FlagSet) payloadValues {
	return payloadValues{
		amount:   fs.String(core.FieldAmount, "", "amount, e.g. 12.50"),
		category: fs.String(core.FieldCategory, "", "category"),
		date:     fs.String(core.FieldDate, "", "date, e.g. 2024-03-01"),
		name:     fs.String(core.FieldName, "", "description"),
		method:   fs.String(core.FieldMethod, "", "payment method"),
		status:   fs.String(core.FieldStatus, core.StatusPending, "status"),
	}
}

func (v payloadValues) payload() core.Payload {
	return core.Payload{
		Amount:   core.AmountInput(*v.amount),
		Category: *v.category,
		Date:     *v.date,
		Name:     *v.name,
		Method:   *v.method,
		Status:   *v.status,
	}
}
