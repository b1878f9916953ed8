package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"railmon/internal/summary"
	"railmon/internal/telegram"
)

func (a *app) reportCmd() *cobra.Command {
	var (
		all     bool
		outFile string
		send    bool
		recent  int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the dashboard as a PNG",
		Long: `Render status totals, top classifications, the monthly trend, open
emergency alerts and the most recent complaints into one image.

With --send the image is posted to the configured Telegram chat.`,
		Args: cobra.NoArgs,
		RunE: a.authed(func(ctx context.Context, out io.Writer, args []string) error {
			cs, err := a.fetch(ctx, all)
			if err != nil {
				return err
			}

			opts := summary.Options{
				Title:      "Railway Complaints Dashboard",
				TopN:       a.cfg.TopClassifications,
				MonthsBack: a.cfg.TrendMonths,
				Keywords:   a.cfg.AlertKeywords,
				Threshold:  a.cfg.AlertSentimentThreshold,
				AlertLimit: a.cfg.AlertLimit,
				RecentN:    recent,
			}
			r := summary.BuildReport(a.engine, cs, opts)

			png, err := summary.RenderReport(r)
			if err != nil {
				return fmt.Errorf("render report: %w", err)
			}
			if err := os.WriteFile(outFile, png, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			zap.S().Infof("🖼️  Report written to %s (%d bytes)", outFile, len(png))

			if send {
				if !a.cfg.TelegramEnabled() {
					return fmt.Errorf("--send needs TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
				}
				tg := telegram.NewClient(telegram.Config{
					BotToken:   a.cfg.TelegramBotToken,
					ChatID:     a.cfg.TelegramChatID,
					RatePerSec: a.cfg.TelegramRatePerSec,
					DebugMode:  a.cfg.DebugMode,
				})
				if _, err := tg.SendPhoto(ctx, png, "report.png", r.Caption()); err != nil {
					return err
				}
				zap.S().Info("📨 Report sent to Telegram")
			}

			return a.print(out, r, func() string {
				return summaryTables(r.Summary) + "\n" + mutedStyle.Render("Image: "+outFile)
			})
		}),
	}
	f := cmd.Flags()
	f.BoolVar(&all, "all", false, "report on every complaint (admin)")
	f.StringVar(&outFile, "out", "report.png", "PNG file to write")
	f.BoolVar(&send, "send", false, "also send the image to Telegram")
	f.IntVar(&recent, "recent", 8, "rows in the recent complaints table")
	return cmd
}
