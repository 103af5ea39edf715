package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"papertweets"
	"papertweets/config"
	"papertweets/feed"
	"papertweets/refresh"
	"papertweets/web"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the paper and tweet listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		var (
			refresher web.Refresher       = offline{}
			rates     web.RateLimitSource = offline{}
		)
		switch err := a.connectTwitter(); {
		case err == nil:
			refresher, rates = a.refresher, a.twitter
		case errors.Is(err, config.ErrInvalid):
			log.Printf("⚠️  Twitter disabled: %v", err)
		default:
			return err
		}

		if a.cfg.Production {
			gin.SetMode(gin.ReleaseMode)
		}
		srv, err := web.NewServer(web.Options{
			Production:    a.cfg.Production,
			RefreshSecret: a.cfg.RefreshSecret,
			PerPage:       a.cfg.PerPage,
			Gatherer:      a.registry,
		}, feed.NewService(a.db), refresher, rates, a.store)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if a.refresher != nil && a.cfg.RefreshInterval > 0 {
			log.Printf("⏰ Refreshing every %s", a.cfg.RefreshInterval)
			go a.refresher.Every(ctx, a.cfg.RefreshInterval)
		}

		httpSrv := &http.Server{
			Addr:              a.cfg.Server.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			log.Printf("🚀 Server starting on %s", a.cfg.Server.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		log.Println("🛑 Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch new tweets for the followed accounts once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := a.refresher.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Message())
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		counts, err := a.store.Counts(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date: %d authors, %d tweets, %d papers\n",
			counts.Authors, counts.Tweets, counts.Papers)
		return nil
	},
}

var rateLimitsCmd = &cobra.Command{
	Use:   "rate-limits",
	Short: "Show the remaining Twitter API quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		limits, err := a.twitter.RateLimitStatus(cmd.Context())
		if err != nil {
			return err
		}
		return printRateLimits(cmd, limits)
	},
}

func printRateLimits(cmd *cobra.Command, limits *papertweets.RateLimits) error {
	var endpoints []string
	byEndpoint := make(map[string]papertweets.RateLimit)
	for _, resource := range limits.Resources {
		for endpoint, l := range resource {
			endpoints = append(endpoints, endpoint)
			byEndpoint[endpoint] = l
		}
	}
	sort.Strings(endpoints)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tREMAINING\tLIMIT\tRESET")
	for _, e := range endpoints {
		l := byEndpoint[e]
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", e, l.Remaining, l.Limit, time.Unix(l.Reset, 0).Local().Format(time.Kitchen))
	}
	return w.Flush()
}

// offline stands in for the Twitter-backed handlers when no credentials
// are configured.
type offline struct{}

var errOffline = errors.New("twitter credentials are not configured")

func (offline) Run(context.Context) (refresh.Report, error) {
	return refresh.Report{}, errOffline
}

func (offline) RateLimitStatus(context.Context) (*papertweets.RateLimits, error) {
	return nil, errOffline
}
