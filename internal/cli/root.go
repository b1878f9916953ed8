// Package cli implements the railmon command line.
//
// Every command that talks to the backend shares one authenticated session:
// it signs in before the command body runs and logs out afterwards.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"railmon/internal/api"
	"railmon/internal/complaint"
	"railmon/internal/config"
	"railmon/internal/logging"
	"railmon/internal/query"
	"railmon/internal/session"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// app carries the wiring shared by the commands of one invocation.
type app struct {
	output string

	// loadConfig is replaced in tests.
	loadConfig func() (*config.Config, error)

	cfg    *config.Config
	client *api.Client
	sess   *session.Session
	engine *query.Engine
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{loadConfig: config.LoadConfig}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "railmon",
		Short: "Railway complaint portal client and triage monitor",
		Long: `railmon talks to the railway complaint backend.

It lists, filters and summarizes complaints, files new ones, lets admins
move complaints through pending → in progress → resolved, renders a
dashboard image, and can run as a watcher that pushes emergency complaints
to a Telegram chat where admins triage them with inline buttons.

Examples:
  railmon list --status pending --range 7days
  railmon stats --all -o json
  railmon update 65f1c2 --status resolved --resolution "Cleaned at Kota"
  railmon watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case outputTable, outputJSON, outputYAML:
				return nil
			}
			return fmt.Errorf("unknown --output %q (want table, json or yaml)", a.output)
		},
	}

	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputTable, "output format: table, json or yaml")

	root.AddCommand(
		a.listCmd(),
		a.showCmd(),
		a.statsCmd(),
		a.alertsCmd(),
		a.updateCmd(),
		a.submitCmd(),
		a.whoamiCmd(),
		a.reportCmd(),
		a.watchCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runFunc is a command body that needs a signed-in session.
type runFunc func(ctx context.Context, out io.Writer, args []string) error

// authed wraps fn with config loading, logging setup, sign-in and logout.
func (a *app) authed(fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := a.loadConfig()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		a.cfg = cfg

		restore, err := logging.Init(cfg.LogLevel, cfg.DebugMode)
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		defer restore()

		api.SetHTTPClient(api.NewHTTPClient(cfg.HTTPTimeout, cfg.HTTPMaxConn))
		client, err := api.New(cfg.APIURL, api.WithDebug(cfg.DebugMode))
		if err != nil {
			return err
		}
		sess := session.New(client, cfg.Email, cfg.Password)
		client.SetAuthenticator(sess)

		a.client = client
		a.sess = sess
		a.engine = query.New(query.WithLocation(time.Local))

		if err := sess.Initialize(ctx); err != nil {
			return err
		}
		defer func() {
			logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = sess.Teardown(logoutCtx)
		}()

		return fn(ctx, cmd.OutOrStdout(), args)
	}
}

// fetch lists the caller's complaints, or every complaint when all is set.
func (a *app) fetch(ctx context.Context, all bool) ([]complaint.Complaint, error) {
	if all {
		if err := a.requireAdmin(); err != nil {
			return nil, err
		}
		return a.client.AllComplaints(ctx)
	}
	return a.client.MyComplaints(ctx)
}

func (a *app) requireAdmin() error {
	if !a.sess.IsAdmin() {
		return fmt.Errorf("this needs an admin account (signed in as %s, role %q)", a.sess.User().Email, a.sess.User().Role)
	}
	return nil
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			type account struct {
				api.User  `yaml:",inline"`
				ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
			}
			acc := account{User: a.sess.User()}
			if exp, ok := a.sess.ExpiresAt(); ok {
				acc.ExpiresAt = &exp
			}
			zap.S().Debugf("whoami: %s", acc.Email)

			return a.print(out, acc, func() string {
				rows := [][]string{
					{"Name", acc.Name},
					{"Email", acc.Email},
					{"Phone", acc.PhoneNumber},
					{"Role", acc.Role},
				}
				if acc.ExpiresAt != nil {
					rows = append(rows, []string{"Token expires", acc.ExpiresAt.Local().Format("02 Jan 2006 15:04")})
				}
				return keyValueTable(rows)
			})
		}),
	}
}
