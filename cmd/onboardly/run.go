package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rahul/onboardly/internal/analytics"
	"github.com/rahul/onboardly/internal/browser"
	"github.com/rahul/onboardly/internal/engine"
	"github.com/rahul/onboardly/internal/observability"
	"github.com/rahul/onboardly/internal/render"
	"github.com/rahul/onboardly/internal/tour"
	"github.com/rahul/onboardly/pkg/config"
)

var (
	runTourID       string
	runURL          string
	runHeadless     bool
	runForce        bool
	runExitOnFinish bool
)

var runCmd = &cobra.Command{
	Use:   "run --tour ID [--url URL]",
	Short: "Open a page in the browser and run a tour on it",
	RunE:  runTour,
}

func init() {
	runCmd.Flags().StringVarP(&runTourID, "tour", "t", "", "tour id to run")
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "page to open (defaults to app.url)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "run the browser without a window")
	runCmd.Flags().BoolVar(&runForce, "force", false, "start even when the tour has autoStart disabled")
	runCmd.Flags().BoolVar(&runExitOnFinish, "exit-on-finish", false, "exit once the tour is completed or skipped")
	_ = runCmd.MarkFlagRequired("tour")
}

func runTour(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if runURL == "" {
		runURL = cfg.App.URL
	}
	if runURL == "" {
		return fmt.Errorf("no page to open: pass --url or set app.url")
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = runHeadless
	}

	observability.PrintBanner(os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := buildPolicy(cfg)
	if err != nil {
		return err
	}
	source := buildSource(cfg, policy)
	def, err := source.Load(ctx, runTourID)
	if err != nil {
		return err
	}
	if !def.AutoStart && !runForce {
		log.Printf("tour %s has autoStart disabled; pass --force to run it anyway", def.TourID)
		return nil
	}

	session := browser.NewSession(browser.Options{
		Headless: cfg.Browser.Headless,
		Width:    cfg.Browser.Width,
		Height:   cfg.Browser.Height,
		ExecPath: cfg.Browser.ExecPath,
	})
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Close()

	st, closeStore, err := openStore(cfg, session)
	if err != nil {
		return err
	}
	defer closeStore()

	status := observability.NewStatus(len(def.Steps))
	var echo io.Writer
	if cfg.Analytics.Echo {
		echo = observability.NewTermWriter()
	}
	sinks := []analytics.Sink{status, observability.NewLogger(cfg.Analytics.LogPath, echo)}

	var collector *analytics.HTTPSink
	if cfg.Analytics.Enabled {
		collector = analytics.NewHTTPSink(cfg.Analytics.Endpoint)
		sinks = append(sinks, collector)
	}

	finished := make(chan struct{})
	var finishOnce sync.Once
	sinks = append(sinks, analytics.SinkFunc(func(_ context.Context, evt analytics.Event) {
		if evt.Type == analytics.TourCompleted || evt.Type == analytics.TourSkipped {
			finishOnce.Do(func() { close(finished) })
		}
	}))

	eng := engine.New(engine.Config{
		Page:         session,
		Highlighter:  render.NewSpotlight(session),
		Panel:        render.NewPanel(session, render.NewSanitizer()),
		Reset:        render.NewResetButton(session),
		Store:        st,
		Source:       source,
		Sink:         analytics.Multi(sinks...),
		WaitTimeout:  cfg.Timing.WaitTimeout(),
		ScrollSettle: cfg.Timing.ScrollSettle(),
		ResetSettle:  cfg.Timing.ResetSettle(),
	})

	if err := session.Navigate(ctx, runURL); err != nil {
		return err
	}
	log.Printf("opened %s (session %s)", runURL, eng.SessionID())

	g, gctx := errgroup.WithContext(ctx)
	if fs, ok := source.(*tour.FileSource); ok {
		if err := fs.Watch(gctx); err != nil {
			log.Printf("tour definitions will not hot reload: %v", err)
		}
	}
	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				fmt.Fprintln(os.Stdout)
				return nil
			case <-ticker.C:
				observability.PrintLiveStatus(os.Stdout, status)
			}
		}
	})

	res, err := eng.Start(ctx, def)
	if err != nil {
		stop()
		g.Wait()
		return err
	}
	log.Printf("tour %s %s at step %d", def.TourID, res.Status, res.Index+1)

	var done <-chan struct{}
	if runExitOnFinish {
		done = finished
		if res.Status != engine.StatusStarted {
			stop()
		}
	}
	select {
	case <-ctx.Done():
	case <-session.Done():
		log.Printf("browser closed")
	case <-done:
	}
	stop()
	g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	eng.Close(shutdownCtx)
	if collector != nil {
		if err := collector.Flush(shutdownCtx); err != nil {
			log.Printf("analytics: %v", err)
		}
	}
	return nil
}
