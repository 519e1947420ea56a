// Package main is the Course Herald entrypoint: it wires the Canvas
// fetch adapter, the change-detection engine, the subscription store,
// the Discord and Twitter clients, and the poll scheduler, then runs
// until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/coursehub/course-herald/config"
	"github.com/coursehub/course-herald/internal/application/engine"
	"github.com/coursehub/course-herald/internal/application/fanout"
	"github.com/coursehub/course-herald/internal/application/mentions"
	"github.com/coursehub/course-herald/internal/application/present"
	"github.com/coursehub/course-herald/internal/domain/course"
	"github.com/coursehub/course-herald/internal/domain/subscription"
	"github.com/coursehub/course-herald/internal/infrastructure/external/canvas"
	platform "github.com/coursehub/course-herald/internal/infrastructure/external/discord"
	"github.com/coursehub/course-herald/internal/infrastructure/external/twitter"
	filerepo "github.com/coursehub/course-herald/internal/infrastructure/persistence/file"
	"github.com/coursehub/course-herald/internal/infrastructure/persistence/postgres"
	rediscache "github.com/coursehub/course-herald/internal/infrastructure/persistence/redis"
	"github.com/coursehub/course-herald/internal/infrastructure/scheduler"
	"github.com/coursehub/course-herald/internal/infrastructure/scheduler/jobs"
	commands "github.com/coursehub/course-herald/internal/interface/discord"
	"github.com/coursehub/course-herald/pkg/circuitbreaker"
	"github.com/coursehub/course-herald/pkg/retry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	if cfg.App.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}
	logger.Info().Str("app", cfg.App.Name).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Course registry ──────────────────────────────────────────────────

	defs, err := cfg.LoadCourses()
	if err != nil {
		return err
	}
	courses := make([]course.Course, 0, len(defs))
	for _, d := range defs {
		courses = append(courses, course.Course{
			ID:              d.ID,
			Name:            d.Name,
			Nick:            d.Nick,
			HomeworkGroupID: d.Homework,
			TestGroupID:     d.Tests,
		})
	}
	registry, err := course.NewRegistry(courses)
	if err != nil {
		return err
	}
	logger.Info().Int("courses", registry.Len()).Msg("registry loaded")

	// ── Canvas client and engine ─────────────────────────────────────────

	canvasCfg := canvas.DefaultClientConfig(cfg.Canvas.Domain, cfg.Canvas.Token)
	canvasCfg.Timeout = cfg.Canvas.RequestTimeout
	canvasCfg.RateLimiterConfig = canvas.RateLimiterConfig{
		RequestsPerMinute: cfg.Canvas.RateLimit,
		Burst:             cfg.Canvas.RateLimitBurst,
	}
	canvasCfg.RetryConfig = retry.Config{
		MaxAttempts:  cfg.Canvas.MaxRetries,
		InitialDelay: cfg.Canvas.RetryBaseDelay,
		MaxDelay:     cfg.Canvas.RetryMaxDelay,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
	canvasCfg.CircuitBreakerConfig = circuitbreaker.Config{
		FailureThreshold: cfg.Canvas.CircuitBreakerThreshold,
		OpenTimeout:      cfg.Canvas.CircuitBreakerTimeout,
		HalfOpenMax:      cfg.Canvas.CircuitBreakerProbes,
	}
	canvasCfg.Logger = logger
	fetcher := canvas.NewClient(canvasCfg)

	eng := engine.New(fetcher, registry, logger)

	// ── Warm-state cache and priming ─────────────────────────────────────

	var cache *rediscache.StateCache
	if !cfg.Redis.Disabled {
		cache, err = rediscache.NewStateCache(rediscache.Config{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			// The cache is an optimization; fall back to priming.
			logger.Warn().Err(err).Msg("warm-state cache unavailable")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	if restored := restoreSeen(ctx, eng, registry, cache, logger); restored == 0 {
		logger.Info().Msg("no cached state, priming from upstream")
		eng.Prime(ctx)
	} else {
		logger.Info().Int("courses", restored).Msg("state restored from cache")
	}

	// ── Subscription store ───────────────────────────────────────────────

	var repo subscription.Repository
	switch cfg.Subscriptions.Backend {
	case config.BackendPostgres:
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Subscriptions.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		repo, err = postgres.NewSubscriptionRepo(ctx, conn, logger)
		if err != nil {
			return err
		}
	default:
		repo = filerepo.NewSubscriptionRepo(cfg.Subscriptions.FilePath, logger)
	}

	store := subscription.NewStore(repo)
	if err := store.Load(ctx); err != nil {
		return err
	}
	logger.Info().Int("subscriptions", store.Len()).Msg("subscription store loaded")

	// ── Outbound clients ─────────────────────────────────────────────────

	discordCfg := platform.DefaultClientConfig(cfg.Discord.Token)
	discordCfg.Timeout = cfg.Discord.RequestTimeout
	discordCfg.Logger = logger
	rest := platform.NewRestClient(discordCfg)
	sender := platform.NewSender(rest)

	var tw *twitter.Client
	if !cfg.Twitter.Disabled {
		twCfg := twitter.DefaultClientConfig()
		twCfg.ConsumerKey = cfg.Twitter.ConsumerKey
		twCfg.ConsumerSecret = cfg.Twitter.ConsumerSecret
		twCfg.AccessTokenKey = cfg.Twitter.AccessTokenKey
		twCfg.AccessTokenSecret = cfg.Twitter.AccessTokenSecret
		twCfg.BearerToken = cfg.Twitter.BearerToken
		twCfg.Handle = cfg.Twitter.Handle
		twCfg.Timeout = cfg.Twitter.RequestTimeout
		twCfg.Logger = logger
		tw = twitter.NewClient(twCfg)
	}

	// ── Application services ─────────────────────────────────────────────

	presenter := present.New(cfg.App.Name, cfg.Canvas.Domain)
	matcher := course.NewKeywordMatcher(registry.All())
	classifier := course.NewKeywordClassifier()

	var poster fanout.StatusPoster
	if tw != nil {
		poster = tw
	}
	router := fanout.NewRouter(sender, poster, store, logger)

	var scanner *mentions.Scanner
	if tw != nil {
		scanner = mentions.NewScanner(tw, router, eng, matcher, classifier, presenter, mentions.Config{
			BotUserID: cfg.Twitter.UserID,
			Window:    cfg.Poll.MentionWindow,
		}, logger)
	}

	dispatcher := commands.NewDispatcher(
		registry, matcher, classifier, store, eng, presenter, rest, sender, logger)

	// ── Gateway ──────────────────────────────────────────────────────────

	gatewayURL, err := rest.GetGatewayURL(ctx)
	if err != nil {
		return err
	}
	gateway := platform.NewGateway(platform.GatewayConfig{
		Token:  cfg.Discord.Token,
		URL:    gatewayURL,
		Logger: logger,
	}, platform.Handlers{
		OnReady: dispatcher.HandleReady,
		OnMessageCreate: func(msg platform.Message) {
			dispatcher.HandleMessage(ctx, msg)
		},
		OnGuildDelete: func(guild platform.UnavailableGuild) {
			dispatcher.HandleGuildDelete(ctx, guild)
		},
	})

	gatewayDone := make(chan error, 1)
	go func() {
		gatewayDone <- gateway.Run(ctx)
	}()

	// ── Scheduler ────────────────────────────────────────────────────────

	var saver jobs.SeenSaver
	if cache != nil {
		saver = cache
	}

	sched := scheduler.New(logger)
	pollJob := jobs.NewPollCourses(registry, eng, router, presenter, saver, logger)
	if err := sched.Register(pollJob, scheduler.NewIntervalSchedule(cfg.Poll.Interval)); err != nil {
		return err
	}
	if scanner != nil {
		scanJob := jobs.NewScanMentions(scanner)
		if err := sched.Register(scanJob, scheduler.NewIntervalSchedule(cfg.Poll.Interval)); err != nil {
			return err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	logger.Info().Dur("poll_interval", cfg.Poll.Interval).Msg("running")

	// ── Shutdown ─────────────────────────────────────────────────────────

	select {
	case <-ctx.Done():
	case err := <-gatewayDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("gateway exited")
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		logger.Warn().Err(err).Msg("scheduler stop")
	}
	if cache != nil {
		for id, seen := range eng.ExportSeen() {
			if err := cache.SaveSeen(shutdownCtx, id, seen); err != nil {
				logger.Warn().Err(err).Str("course_id", id).Msg("final snapshot save failed")
			}
		}
	}

	logger.Info().Msg("stopped")
	return nil
}

// restoreSeen loads per-course dedup snapshots from the warm-state cache.
// Returns the number of courses restored; zero means a cold start.
func restoreSeen(ctx context.Context, eng *engine.Engine, registry *course.Registry,
	cache *rediscache.StateCache, logger zerolog.Logger) int {
	if cache == nil {
		return 0
	}

	seen := make(map[string]course.SeenIDs)
	for _, c := range registry.All() {
		var ids course.SeenIDs
		err := cache.LoadSeen(ctx, c.ID, &ids)
		if errors.Is(err, rediscache.ErrCacheMiss) {
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Str("course_id", c.ID).Msg("snapshot load failed")
			continue
		}
		seen[c.ID] = ids
	}
	return eng.RestoreSeen(seen)
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
