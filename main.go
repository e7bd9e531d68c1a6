// Command chat-tender is the main entrypoint for the chat bot and its admin API.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres, runs idempotent migrations, and loads commands,
//     currency accounts, and settings into memory.
//   - Connects to Twitch chat and dispatches commands through the execution
//     engine (permissions, cooldowns, cost, sound arbitration).
//   - Starts background jobs: live-status polling, viewer refresh, currency
//     payouts, periodic ledger persistence, and the OAuth token refresher.
//   - Exposes an HTTP server with /healthz, /status, /metrics, and command
//     and currency management endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/command"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/currency"
	"github.com/onnwee/chat-tender/db"
	"github.com/onnwee/chat-tender/oauth"
	"github.com/onnwee/chat-tender/server"
	"github.com/onnwee/chat-tender/sound"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations using dual-system approach:
	// 1. Primary: versioned migrations (golang-migrate) from db/migrations/
	// 2. Fallback: embedded SQL (db.Migrate) for backward compatibility
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("embedded SQL migration completed", slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed", slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load persisted state into memory.
	registry := command.NewRegistry()
	if defs, err := db.LoadCommands(ctx, database); err != nil {
		slog.Error("failed to load commands", slog.Any("err", err))
		os.Exit(1)
	} else {
		registry.Replace(defs)
		slog.Info("commands loaded", slog.Int("count", len(defs)))
	}

	ledger := currency.NewLedger()
	if accounts, err := db.LoadAccounts(ctx, database); err != nil {
		slog.Error("failed to load currency accounts", slog.Any("err", err))
		os.Exit(1)
	} else {
		ledger.Replace(accounts)
		telemetry.SetAccounts(ledger.Len())
		slog.Info("currency accounts loaded", slog.Int("count", len(accounts)))
	}

	settings, found, err := db.LoadCurrencySettings(ctx, database)
	if err != nil {
		slog.Error("failed to load currency settings", slog.Any("err", err))
		os.Exit(1)
	}
	if !found {
		if err := db.SaveCurrencySettings(ctx, database, settings); err != nil {
			slog.Warn("failed to seed currency settings", slog.Any("err", err))
		}
	}
	settingsStore := currency.NewSettingsStore(settings)

	persist := func(pctx context.Context, accounts []currency.Account) error {
		return db.SaveAccounts(pctx, database, accounts)
	}

	// Helix client for live status and viewer refresh (app token).
	var helix *twitchapi.HelixClient
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		helix = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
	} else {
		slog.Warn("TWITCH_CLIENT_ID/SECRET not set; live status and viewer refresh disabled")
	}

	var liveStatus *chat.LiveStatus
	if helix != nil && cfg.TwitchChannel != "" {
		liveStatus = chat.NewLiveStatus(helix, cfg.TwitchChannel)
		go liveStatus.Run(ctx, cfg.LivePollInterval)
		go chat.StartViewerRefreshJob(ctx, helix, cfg.TwitchChannel, cfg.TwitchBotUsername, ledger, cfg.ViewerRefreshInterval)
	}
	isLive := func() bool { return liveStatus != nil && liveStatus.IsLive() }

	// Sound arbitration and playback.
	gate := sound.NewGate(os.Getenv("SOUND_ALLOW_INTERRUPTION") == "1", os.Getenv("SOUND_BLOCK_MESSAGE") != "0")
	gate.SetSoundDir(cfg.SoundDir)
	player := sound.NewPlayer(gate)
	play := func(pctx context.Context, resource string, volume int) {
		player.Start(pctx, gate.Path(resource), volume)
	}

	// Payout scheduler.
	scheduler := currency.NewScheduler(ledger, settingsStore.Get, func(context.Context) bool { return isLive() }, persist, cfg.PayoutTick)
	scheduler.Start(ctx)

	// Periodic ledger flush independent of payouts (chat activity mutates the
	// ledger between ticks).
	go currency.StartPersistJob(ctx, ledger, cfg.PersistInterval, persist)

	// Chat bot, dispatcher, and execution engine. When TWITCH_OAUTH_TOKEN is
	// unset, fall back to the stored user token so a completed OAuth flow can
	// drive the chat connection without env changes.
	cooldowns := command.NewCooldownTracker()
	chatToken, err := oauth.ChatToken(ctx, database, cfg.TwitchOAuthToken)
	if err != nil {
		slog.Warn("stored chat token lookup failed", slog.Any("err", err))
	} else if chatToken != "" && cfg.TwitchOAuthToken == "" {
		slog.Info("using stored oauth token for chat")
	}
	cfg.TwitchOAuthToken = chatToken
	var bot *chat.Bot
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat disabled", slog.Any("err", err))
	} else {
		bot = chat.NewBot(cfg.TwitchChannel, cfg.TwitchBotUsername, cfg.TwitchOAuthToken, cfg.CommandPrefix, ledger)
		engine := command.NewEngine(bot, ledger, gate, cooldowns, settingsStore.Get, play)
		onCommand := func(cctx context.Context, ev command.Event) {
			def, ok := registry.Get(ev.Trigger)
			if !ok {
				return
			}
			res := engine.Execute(cctx, &def, ev.Username, ev.Arguments, bot.Resolve(ev.Username))
			if !res.Success {
				return
			}
			if count, ok := registry.IncrementCount(def.Key()); ok {
				if err := db.SaveCommandCount(cctx, database, def.Key(), count); err != nil {
					slog.Warn("failed to persist command count", slog.String("key", def.Key()), slog.Any("err", err))
				}
			}
		}
		ledgerPersist := func(pctx context.Context) error {
			return db.SaveAccounts(pctx, database, ledger.Snapshot())
		}
		dispatcher := command.NewDispatcher(bot, ledger, settingsStore.Get, bot.Resolve, ledgerPersist, onCommand)
		bot.SetDispatcher(dispatcher)
		go func() {
			if err := bot.Run(ctx); err != nil {
				slog.Error("twitch chat connection failed", slog.Any("err", err))
			}
		}()
	}

	// OAuth: keep the stored bot user token fresh.
	var oauthCfg = twitchapi.OAuthConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, cfg.TwitchScopes)
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute, oauth.NewTwitchRefresher(oauthCfg))
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP admin API.
	deps := server.Deps{
		DB:       database,
		Registry: registry,
		Ledger:   ledger,
		Settings: settingsStore.Get,
		ApplySettings: func(actx context.Context, s currency.Settings) error {
			if err := db.SaveCurrencySettings(actx, database, s); err != nil {
				return err
			}
			settingsStore.Set(s)
			// Restart the scheduler so interval changes take effect now
			// rather than on the next tick.
			scheduler.Stop()
			scheduler.Start(ctx)
			return nil
		},
		IsLive:           isLive,
		SoundBusy:        gate.Busy,
		SchedulerRunning: scheduler.Running,
		ResetCooldowns:   cooldowns.Reset,
	}
	if cfg.TwitchClientID != "" && cfg.TwitchRedirectURI != "" {
		deps.OAuth = oauthCfg
	}
	go func() {
		if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	scheduler.Stop()
	player.Stop()

	// Final ledger flush so accrued points survive the restart.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.SaveAccounts(flushCtx, database, ledger.Snapshot()); err != nil {
		slog.Error("final ledger flush failed", slog.Any("err", err))
	}
}
