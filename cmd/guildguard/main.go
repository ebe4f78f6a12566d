package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildguard/internal/alert"
	"guildguard/internal/bot"
	"guildguard/internal/config"
	"guildguard/internal/confirm"
	"guildguard/internal/discord"
	"guildguard/internal/guard"
	"guildguard/internal/logging"
	"guildguard/internal/metrics"
	"guildguard/internal/oplock"
	"guildguard/internal/rebuild"
	"guildguard/internal/restore"
	"guildguard/internal/snapshot"
	"guildguard/internal/store"
	"guildguard/internal/tracker"
	"guildguard/internal/watchdog"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadOrDefault("config.yaml")

	if err := logging.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		fmt.Printf("Logging setup failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.Bot.Token == "" {
		logrus.Fatal("no bot token configured (set bot.token or DISCORD_TOKEN)")
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open store")
	}

	components, b := startComponents(cfg, db)

	if err := b.Start(); err != nil {
		logrus.WithError(err).Fatal("failed to connect to gateway")
	}

	logrus.Info("all components started")

	waitForShutdown()

	components.dog.Stop()
	if err := b.Close(); err != nil {
		logrus.WithError(err).Warn("gateway close failed")
	}
	if err := db.Close(); err != nil {
		logrus.WithError(err).Warn("store close failed")
	}

	logrus.WithField("counters", metrics.Default().Snapshot()).Info("shutdown complete")
}

type components struct {
	dog      *watchdog.Watchdog
	restore  *restore.Engine
	rebuilds *rebuild.Workflow
}

func startComponents(cfg *config.Config, db *store.Store) (*components, *bot.Bot) {
	track := tracker.New(db.Configs)
	throttle := alert.NewThrottler(db.AlertStates, db.Configs, cfg.Engine.AlertCooldown())

	dog := watchdog.New(30 * time.Second)
	dog.Register("restore", 2*time.Minute)
	dog.Register("rebuild", 2*time.Minute)
	dog.Start()

	locks := oplock.New()
	gate := confirm.New(cfg.Engine.ConfirmWindow())

	b, err := bot.New(cfg.Bot.Token)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create bot")
	}

	// The API client wraps the bot's session, so the engines are built
	// around it and wired back in before the gateway opens.
	api := discord.NewClient(b.Session(), cfg.Engine.PaceInterval())
	notify := alert.NewNotifier(api, db.Configs)
	snaps := snapshot.NewEngine(api, db.Snapshots, db.Configs)
	g := guard.NewEngine(db.Configs, api, track, throttle, notify, snaps,
		cfg.Engine.RaidThreshold, cfg.Engine.TimeoutDuration())
	b.Wire(api, g)

	restoreEngine := restore.NewEngine(api, snaps, locks, gate, dog)
	rebuildFlow := rebuild.NewWorkflow(api, db.Checkpoints, locks, notify, gate, dog,
		cfg.Engine.CheckpointTTL(), cfg.Engine.CheckpointEvery)

	return &components{
		dog:      dog,
		restore:  restoreEngine,
		rebuilds: rebuildFlow,
	}, b
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nshutdown signal received")
}
