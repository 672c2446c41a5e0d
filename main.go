package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/guardbot/internal/audit"
	"github.com/iamwavecut/guardbot/internal/bot"
	"github.com/iamwavecut/guardbot/internal/classifier"
	"github.com/iamwavecut/guardbot/internal/config"
	"github.com/iamwavecut/guardbot/internal/db/sqlite"
	chathandlers "github.com/iamwavecut/guardbot/internal/handlers/chat"
	"github.com/iamwavecut/guardbot/internal/infra"
	"github.com/iamwavecut/guardbot/internal/lifecycle"
	"github.com/iamwavecut/guardbot/internal/moderation"
	"github.com/iamwavecut/guardbot/internal/observability"
	"github.com/iamwavecut/guardbot/internal/rules"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err.Error()).Fatalln("cant load config")
	}
	log.SetFormatter(&config.GbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workDir := infra.GetWorkDir(cfg.DotPath)

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithField("error", err.Error()).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	dbClient, err := sqlite.NewSQLiteClient(ctx, workDir, "bot.db")
	if err != nil {
		log.WithField("error", err.Error()).Fatalln("cant initialize sqlite")
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.WithField("error", err.Error()).Errorln("cant close sqlite")
		}
	}()

	service := bot.NewService(botAPI, dbClient)
	ops := service.GetOps()
	lang := cfg.DefaultLanguage

	auditLog := audit.NewLog()
	ledger := moderation.NewViolationLedger(dbClient)
	policy := moderation.NewEscalationPolicy(cfg.Moderation.EscalationStages)
	manager := moderation.NewManager(ops, ledger, policy, auditLog, cfg.Moderation, lang)
	limiter := moderation.NewRateLimiter(cfg.Moderation.RateWindow, cfg.Moderation.RateMaxMessages)
	pipeline := moderation.NewPipeline(limiter, classifier.New(cfg.Classifier), dbClient)

	broadcaster := rules.NewBroadcaster(ops, cfg.Rules, workDir)

	updateProcessor := bot.NewUpdateProcessor(service,
		broadcaster,
		chathandlers.NewGatekeeper(service, manager, pipeline, cfg.Moderation, lang),
		chathandlers.NewCommands(service, manager, pipeline, lang),
		chathandlers.NewAppeals(service, manager, cfg.Appeals, lang),
		chathandlers.NewReactor(service, manager, pipeline, lang),
	)

	runtime := lifecycle.NewRuntime(
		manager,
		broadcaster,
		observability.NewServer(cfg.MetricsAddr),
	)
	if err := runtime.Start(ctx); err != nil {
		log.WithField("error", err.Error()).Fatalln("cant start components")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Errorln("cant stop components")
		}
	}()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case err := <-errorChan:
				return err
			case update := <-updateChan:
				u := update
				infra.GoRecoverable(-1, "update", func() {
					if err := updateProcessor.Process(gCtx, &u); err != nil {
						log.WithField("error", err.Error()).Errorln("cant process update")
					}
				})
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.WithField("error", err.Error()).Fatalln("bot api get updates error")
	}
	log.Infoln("shutting down")
}
