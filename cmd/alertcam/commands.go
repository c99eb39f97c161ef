package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"alertcam/internal/app"
	"alertcam/internal/config"
	"alertcam/internal/dto"
	"alertcam/internal/logger"
	"alertcam/internal/repository/sqlite"
	"alertcam/internal/service/episode"
	"alertcam/internal/service/storage"

	"github.com/urfave/cli/v2"
)

func getCommands() []*cli.Command {
	return []*cli.Command{
		getRunCommand(),
		getEpisodesCommand(),
		getClassesCommand(),
		getReindexCommand(),
	}
}

// loadConfig applies the global flags on top of config.Load.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := os.Setenv("ENV_FILE", c.String("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

func getRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the detection loop and the web server",
		Description: `Reads frames from CAMERA_DEVICE, groups consecutive target detections
into episodes and POSTs one alert to ALERT_URL when an episode ends.

Examples:
  alertcam run
  alertcam --env-file prod.env run`,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log, err := logger.NewLogger(cfg.LogDirectory, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApp(ctx, cfg, log)
			if err != nil {
				log.Error("Failed to start: %v", err)
				return err
			}
			defer application.Close()

			return application.Run(ctx)
		},
	}
}

func getEpisodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "episodes",
		Usage: "Print the most recent journaled episodes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
				Usage:   "Number of episodes to print",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only episodes with this delivery status (delivered, failed)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			db, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := sqlite.NewEpisodeRepository(db)
			episodes, err := repo.GetAll(&dto.EpisodeFilters{Status: c.String("status"), Limit: c.Int("limit")})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tDURATION\tLABELS\tIMAGES\tSTATUS\tID")
			for _, ep := range episodes {
				labels := make([]string, 0, len(ep.Categories))
				for _, cat := range ep.Categories {
					labels = append(labels, cat.Label)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					ep.StartedAt.Local().Format("2006-01-02 15:04:05"),
					ep.EndedAt.Sub(ep.StartedAt).Round(time.Millisecond),
					strings.Join(labels, ","),
					ep.ImageCount,
					ep.Status,
					ep.ID)
			}
			return w.Flush()
		},
	}
}

func getClassesCommand() *cli.Command {
	return &cli.Command{
		Name:  "classes",
		Usage: "Print the target classes and their category ids",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			registry, err := episode.NewRegistry(cfg.TargetClasses)
			if err != nil {
				return err
			}
			for _, label := range registry.Labels() {
				id, _ := registry.Lookup(label)
				fmt.Fprintf(c.App.Writer, "%s\t%s\n", label, id)
			}
			return nil
		},
	}
}

func getReindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Record image files missing from the journal and report orphans",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "delete-orphans",
				Usage: "Remove image files that belong to no journaled episode",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			db, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			log := logger.NewConsole(c.App.ErrWriter, cfg.LogLevel)
			journal := storage.NewJournalService(cfg.ImageDirectory, sqlite.NewEpisodeRepository(db), log)

			fmt.Fprintf(c.App.Writer, "Reindexing images from %s into %s\n", cfg.ImageDirectory, cfg.DatabasePath)
			result, err := journal.Reconcile(c.Bool("delete-orphans"))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "✅ Scanned %d files, restored %d images\n", result.Scanned, result.Restored)
			if result.Orphans > 0 {
				fmt.Fprintf(c.App.Writer, "⚠️  %d orphaned files, %d deleted\n", result.Orphans, result.Deleted)
			}
			if result.Skipped > 0 {
				fmt.Fprintf(c.App.Writer, "⚠️  Skipped %d files (invalid format or errors)\n", result.Skipped)
			}
			return nil
		},
	}
}
