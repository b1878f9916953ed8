package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"railmon/internal/health"
	"railmon/internal/monitor"
	"railmon/internal/storage"
	"railmon/internal/telegram"
	"railmon/internal/translate"
)

func (a *app) watchCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Push emergency complaints to Telegram (admin)",
		Long: `Run the triage monitor.

Every FETCH_INTERVAL the monitor fetches all complaints, sends a Telegram
alert for each new emergency, and closes alerts whose complaint was
resolved. Admins triage from Telegram: "In Progress" assigns the complaint
to whoever tapped it, "Mark as Resolved" asks for remarks and resolves it.

The health endpoint (/health, /metrics) listens on HEALTH_CHECK_PORT.
Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			if err := a.requireAdmin(); err != nil {
				return err
			}
			cfg := a.cfg

			zap.S().Info("🚀 Starting railmon watcher...")
			zap.S().Info("📋 Initializing alert storage...")
			store := storage.New(cfg.StorageFile)

			zap.S().Info("📨 Initializing Telegram...")
			tg := telegram.NewClient(telegram.Config{
				BotToken:   cfg.TelegramBotToken,
				ChatID:     cfg.TelegramChatID,
				RatePerSec: cfg.TelegramRatePerSec,
				DebugMode:  cfg.DebugMode,
			})
			if tg == nil {
				zap.S().Warn("⚠️  Telegram not configured - alerts are tracked but not sent")
			}

			var translator monitor.Translator
			tr, err := translate.NewTranslator(ctx, cfg.TranslateAPIKey, cfg.TranslateTarget)
			if err != nil {
				return err
			}
			if tr != nil {
				defer tr.Close()
				translator = tr
				zap.S().Infof("🌐 Translating complaints to %s", tr.Target())
			}

			hm := health.NewMonitor(cfg.MaxFetchFailures)
			mon := monitor.New(a.client, tg, translator, store, a.engine, hm, monitor.Options{
				Interval:    cfg.FetchInterval,
				MaxFailures: cfg.MaxFetchFailures,
				Workers:     cfg.WorkerPoolSize,
				Keywords:    cfg.AlertKeywords,
				Threshold:   cfg.AlertSentimentThreshold,
			})

			if once {
				res, err := mon.RunOnce(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "fetched=%d actionable=%d alerts=%d notified=%d failed=%d closed=%d\n",
					res.Fetched, res.Actionable, res.Alerts, res.Notified, res.Failed, res.Reconciled)
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return mon.Run(gctx) })
			g.Go(func() error { return tg.HandleUpdates(gctx, a.client, store) })
			g.Go(func() error { return health.Serve(gctx, hm, cfg.HealthCheckPort) })

			err = g.Wait()
			zap.S().Info("👋 Watcher stopped")
			return err
		}),
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}
