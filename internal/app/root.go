// Package app wires configuration, logging, metrics, the catalog client and
// the library manager into the cybooks command tree.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"cybooks/catalog"
	"cybooks/internal/config"
	"cybooks/internal/logger"
	"cybooks/internal/metrics"
	"cybooks/library"
)

// cli holds what the commands of one invocation share.
type cli struct {
	flagConfig  string
	flagNoColor bool

	cfg        *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	collector  *metrics.Collector
	mgr        *library.LibraryManager
	metricsSrv *http.Server

	// httpClient replaces the SSRF-guarded client when set.
	httpClient *http.Client
	// logOutput defaults to stderr.
	logOutput io.Writer
}

// Execute is the entry point called from main.
func Execute() {
	c := &cli{}
	err := newRootCmd(c).Execute()
	if cerr := c.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "cybooks",
		Short: "Lending library inventory, loans and BnF catalog search",
		Long: `cybooks tracks users, book copies and loans in a local SQLite database
and looks books up in the Bibliothèque nationale de France SRU catalog.

Run 'cybooks shell' for the interactive menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.flagConfig, "config", "", "Config file path (default: ~/.config/cybooks/config.yml)")
	root.PersistentFlags().BoolVar(&c.flagNoColor, "no-color", false, "Disable colored output")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initColor(c.flagNoColor)

		cfg, err := config.Load(c.flagConfig)
		if err != nil {
			// config init must be able to replace a broken file.
			if cmd.Name() != "init" {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = config.Default()
		}
		c.cfg = cfg

		w := c.logOutput
		if w == nil {
			w = os.Stderr
		}
		if c.logger, err = logger.Setup(w, cfg.Log.Level, cfg.Log.Format); err != nil {
			return err
		}

		c.registry = prometheus.NewRegistry()
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		c.collector = metrics.NewCollector(c.registry)
		return nil
	}

	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return c.close()
	}

	root.AddCommand(
		newUserCmd(c),
		newBookCmd(c),
		newLendCmd(c),
		newReturnCmd(c),
		newLoansCmd(c),
		newTopCmd(c),
		newSearchCmd(c),
		newShellCmd(c),
		newConfigCmd(c),
	)
	return root
}

// openLibrary opens the manager on first use and starts the metrics endpoint
// when one is configured.
func (c *cli) openLibrary() (*library.LibraryManager, error) {
	if c.mgr != nil {
		return c.mgr, nil
	}

	mgr, err := library.NewLibraryManager(c.cfg.Database.Path, c.catalogClient(),
		library.WithLogger(c.logger),
		library.WithRecorder(c.collector),
	)
	if err != nil {
		return nil, fmt.Errorf("opening library: %w", err)
	}
	c.mgr = mgr

	if c.cfg.Metrics.Addr != "" {
		c.startMetrics()
	}
	return mgr, nil
}

func (c *cli) catalogClient() *catalog.Client {
	cc := c.cfg.Catalog
	client := c.httpClient
	if client == nil {
		client = catalog.NewSafeClient(cc.Timeout)
	}
	fetcher := catalog.NewHTTPFetcher(client, rate.NewLimiter(rate.Limit(cc.RequestsPerSecond), cc.Burst), cc.MaxBodyBytes)
	return catalog.NewClient(
		catalog.NewQueryBuilder(cc.BaseURL, cc.PageSize),
		fetcher,
		c.logger.With(slog.String("component", "catalog")),
		catalog.WithRecorder(c.collector),
	)
}

func (c *cli) startMetrics() {
	c.metricsSrv = &http.Server{
		Addr:              c.cfg.Metrics.Addr,
		Handler:           metrics.Handler(c.registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := c.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics server stopped", slog.String("addr", srv.Addr), slog.String("error", err.Error()))
		}
	}()
	c.logger.Info("metrics server listening", slog.String("addr", srv.Addr))
}

func (c *cli) close() error {
	var errs []error
	if c.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, c.metricsSrv.Shutdown(ctx))
		c.metricsSrv = nil
	}
	if c.mgr != nil {
		errs = append(errs, c.mgr.Close())
		c.mgr = nil
	}
	return errors.Join(errs...)
}

func initColor(disable bool) {
	color.NoColor = disable || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd()))
}
