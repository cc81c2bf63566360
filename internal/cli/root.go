package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/apiclient"
	"github.com/spec-kit/leadcrm/internal/config"
	"github.com/spec-kit/leadcrm/internal/leads"
	"github.com/spec-kit/leadcrm/internal/observability"
	"github.com/spec-kit/leadcrm/internal/persistence"
	"github.com/spec-kit/leadcrm/internal/session"
)

// Options overrides the collaborators the CLI would otherwise build from
// the environment. The zero value is what the binary uses.
type Options struct {
	Config     *config.Config
	Logger     *zap.Logger
	HTTPClient *http.Client
	Store      persistence.KeyValueStore
	Now        func() time.Time
}

type app struct {
	opts Options

	format   string
	verbose  bool
	logLevel string

	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	store    persistence.KeyValueStore
	ownStore bool
	client   *apiclient.Client
	session  *session.Manager
	leads    *leads.Store
	out      *printer
}

// NewRootCommand builds the leadcrm command tree.
func NewRootCommand(opts Options) *cobra.Command {
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "leadcrm",
		Short: "Command-line client for the lead CRM",
		Long: `leadcrm signs in to the CRM API, keeps the session on disk and
works with leads from the terminal.

The API root comes from API_BASE_URL; the session is stored with the
driver named by STORAGE_DRIVER (file, memory, redis, postgres).

Examples:
  leadcrm login --email agent@example.com --password-stdin < pw.txt
  leadcrm leads list --status New
  leadcrm dashboard --format json`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.format, "format", "f", formatText, "output format (text, json, yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "print request metrics where supported")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (default warn, or LOG_LEVEL)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newWhoamiCmd(a),
		newStatusCmd(a),
		newProfileCmd(a),
		newPasswordCmd(a),
		newGoogleCmd(a),
		newPermissionsCmd(a),
		newLeadsCmd(a),
		newDashboardCmd(a),
		newAgentsCmd(a),
	)
	return root
}

// ExecuteContext runs the CLI with process defaults.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand(Options{}).ExecuteContext(ctx)
}

// setup wires the client stack and resumes any stored session.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	out, err := newPrinter(a.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	a.out = out

	a.cfg = a.opts.Config
	if a.cfg == nil {
		if a.cfg, err = config.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	a.logger = a.opts.Logger
	if a.logger == nil {
		if a.logger, err = a.buildLogger(); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}

	ctx := cmd.Context()
	a.store = a.opts.Store
	if a.store == nil {
		if a.store, err = persistence.OpenStore(ctx, a.cfg, a.logger); err != nil {
			return fmt.Errorf("open session storage: %w", err)
		}
		a.ownStore = true
	}

	a.metrics = observability.NewMetrics()
	clientOpts := []apiclient.Option{apiclient.WithRequestIDs(uuid.NewString)}
	if a.opts.HTTPClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(a.opts.HTTPClient))
	}
	a.client = apiclient.NewFromConfig(a.cfg, a.logger, a.metrics, clientOpts...)

	sessionOpts := []session.Option{session.WithLogger(a.logger)}
	if a.opts.Now != nil {
		sessionOpts = append(sessionOpts, session.WithClock(a.opts.Now))
	}
	a.session = session.New(a.client, a.store, sessionOpts...)
	a.client.SetTokenSource(a.session)
	a.client.OnUnauthorized(a.session.HandleUnauthorized)
	a.leads = leads.NewStore(a.client, a.session, a.logger)

	a.session.Initialize(ctx)
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.session != nil {
		a.session.Dispose()
	}
	if a.ownStore && a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close session storage failed", zap.Error(err))
		}
	}
	if a.logger != nil && a.opts.Logger == nil {
		_ = a.logger.Sync()
	}
	return nil
}

func (a *app) buildLogger() (*zap.Logger, error) {
	lc := a.cfg.Logger
	switch {
	case a.logLevel != "":
		lc.Level = a.logLevel
	case os.Getenv("LOG_LEVEL") == "":
		lc.Level = "warn"
	}
	if os.Getenv("LOG_ENCODING") == "" {
		lc.Encoding = "console"
	}
	logger, err := observability.NewLogger(lc)
	if err != nil {
		return nil, err
	}
	return observability.ForApp(logger, a.cfg.App, "cli"), nil
}

func (a *app) now() time.Time {
	if a.opts.Now != nil {
		return a.opts.Now()
	}
	return time.Now()
}
