package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	"totalx/internal/admin"
	"totalx/internal/backend"
	"totalx/internal/config"
	"totalx/internal/core"
	"totalx/internal/ledger"
	"totalx/internal/log"
	"totalx/internal/services"
)

// session is an opened backend with the service built on top of it.
type session struct {
	svc   *services.LedgerService
	close func() error
}

type app struct {
	actor  string
	out    io.Writer
	errOut io.Writer
	open   func(ctx context.Context) (*session, error)
}

func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	registry, err := admin.Load(ctx, cfg.Admins(), res.Repository, cfg.Policy())
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	svc := services.NewLedgerService(ledger.New(ledger.NewStores(res.Repository), ledger.WithLocation(cfg.Location())), registry,
		services.WithPublisher(res.Publisher),
		services.WithCurrency(cfg.Currency))
	return &session{svc: svc, close: res.Cleanup}, nil
}

// runFunc executes one command and returns the reply to print.
type runFunc func(ctx context.Context, s *services.LedgerService, actor core.Identity, args []string) (string, error)

// ledgerCmd adapts a ledger command to subcommands.Command.
type ledgerCmd struct {
	app      *app
	name     string
	op       string
	synopsis string
	usage    string
	nargs    int
	run      runFunc
	flags    func(f *flag.FlagSet)
}

func (c *ledgerCmd) Name() string     { return c.name }
func (c *ledgerCmd) Synopsis() string { return c.synopsis }
func (c *ledgerCmd) Usage() string    { return c.usage }

func (c *ledgerCmd) SetFlags(f *flag.FlagSet) {
	if c.flags != nil {
		c.flags(f)
	}
}

func (c *ledgerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != c.nargs {
		fmt.Fprint(c.app.errOut, c.usage)
		return subcommands.ExitUsageError
	}
	actor, err := core.ParseIdentity(c.app.actor)
	if err != nil {
		fmt.Fprintln(c.app.errOut, "missing or invalid -actor:", err)
		return subcommands.ExitUsageError
	}

	sess, err := c.app.open(ctx)
	if err != nil {
		fmt.Fprintln(c.app.errOut, err)
		return subcommands.ExitFailure
	}
	defer sess.close()

	msg, err := c.run(ctx, sess.svc, actor, f.Args())
	if err != nil {
		target := ""
		if c.op == log.OpSetAdmin && f.NArg() > 0 {
			target = f.Arg(0)
		}
		fmt.Fprintln(c.app.errOut, services.ErrorMessage(c.op, target, err))
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.app.out, msg)
	return subcommands.ExitSuccess
}

func (a *app) commands() []subcommands.Command {
	var exportPath string
	return []subcommands.Command{
		&ledgerCmd{
			app: a, name: "add", op: log.OpAdd, nargs: 1,
			synopsis: "record a credit",
			usage:    "totalxctl -actor @you add <amount>\n\n  Records a credit, e.g. add 100 or add 0,05.\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, args []string) (string, error) {
				res, err := s.Add(ctx, actor, args[0])
				return res.Message, err
			},
		},
		&ledgerCmd{
			app: a, name: "subtract", op: log.OpSubtract, nargs: 1,
			synopsis: "record a debit",
			usage:    "totalxctl -actor @you subtract <amount>\n\n  Records a debit of the given unsigned amount.\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, args []string) (string, error) {
				res, err := s.Subtract(ctx, actor, args[0])
				return res.Message, err
			},
		},
		&ledgerCmd{
			app: a, name: "total", op: log.OpTotal,
			synopsis: "print the balance",
			usage:    "totalxctl -actor @you total\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, _ []string) (string, error) {
				res, err := s.Total(ctx, actor)
				return res.Message, err
			},
		},
		&ledgerCmd{
			app: a, name: "report", op: log.OpReport,
			synopsis: "print credits, debits and totals",
			usage:    "totalxctl -actor @you report\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, _ []string) (string, error) {
				res, err := s.Report(ctx, actor)
				return res.Message, err
			},
		},
		&ledgerCmd{
			app: a, name: "export", op: log.OpExport,
			synopsis: "write the estratto conto as an xlsx file",
			usage:    "totalxctl -actor @you export [-o file.xlsx]\n",
			flags: func(f *flag.FlagSet) {
				f.StringVar(&exportPath, "o", "", "output file (default: the export's own file name)")
			},
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, _ []string) (string, error) {
				res, err := s.Export(ctx, actor)
				if err != nil {
					return "", err
				}
				out := exportPath
				if out == "" {
					out = res.FileName
				}
				if err := os.WriteFile(out, res.Data, 0o644); err != nil {
					return "", fmt.Errorf("write export: %w", err)
				}
				return "Estratto conto salvato in " + out, nil
			},
		},
		&ledgerCmd{
			app: a, name: "undo", op: log.OpUndo,
			synopsis: "remove the last movement",
			usage:    "totalxctl -actor @you undo\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, _ []string) (string, error) {
				res, err := s.Undo(ctx, actor)
				return res.Message, err
			},
		},
		&ledgerCmd{
			app: a, name: "reset", op: log.OpReset,
			synopsis: "discard every movement",
			usage:    "totalxctl -actor @you reset\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, _ []string) (string, error) {
				res, err := s.Reset(ctx, actor)
				return res.Message, err
			},
		},
		&ledgerCmd{
			app: a, name: "setadmin", op: log.OpSetAdmin, nargs: 1,
			synopsis: "grant or revoke admin membership",
			usage:    "totalxctl -actor @admin setadmin <@user>\n\n  Toggles the user's dynamic admin membership.\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, args []string) (string, error) {
				res, err := s.SetAdmin(ctx, actor, args[0])
				return res.Message, err
			},
		},
		&ledgerCmd{
			app: a, name: "adminlist", op: log.OpAdminList,
			synopsis: "list the admins",
			usage:    "totalxctl -actor @admin adminlist\n",
			run: func(ctx context.Context, s *services.LedgerService, actor core.Identity, _ []string) (string, error) {
				res, err := s.AdminList(ctx, actor)
				return strings.TrimRight(res.Message, "\n"), err
			},
		},
	}
}
