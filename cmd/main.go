package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-chi/chi"
	"github.com/go-chi/docgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/sksmith/bunnyq"
	"github.com/sksmith/go-spares/internal/api"
	"github.com/sksmith/go-spares/internal/config"
	"github.com/sksmith/go-spares/internal/core/order"
	"github.com/sksmith/go-spares/internal/core/report"
	"github.com/sksmith/go-spares/internal/core/scan"
	"github.com/sksmith/go-spares/internal/core/stock"
	"github.com/sksmith/go-spares/internal/core/user"
	"github.com/sksmith/go-spares/internal/db"
	"github.com/sksmith/go-spares/internal/db/memrepo"
	"github.com/sksmith/go-spares/internal/db/orderrepo"
	"github.com/sksmith/go-spares/internal/db/stockrepo"
	"github.com/sksmith/go-spares/internal/db/usrrepo"
	"github.com/sksmith/go-spares/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	configLogging(cfg)
	printLogHeader(cfg)
	cfg.Print()

	repos := configRepositories(ctx, cfg)

	var bq *bunnyq.BunnyQ
	if !cfg.RabbitMQ.Mock {
		bq = rabbit(cfg)
	}
	q := configQueue(bq, cfg)

	svc, err := configServices(ctx, cfg, repos, q)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create services")
	}

	log.Info().Msg("configuring metrics...")
	api.ConfigureMetrics()

	log.Info().Msg("configuring router...")
	r := api.ConfigureRouter(cfg, svc)

	if cfg.PrintRoutes {
		printRoutes(r)
	}

	if bq != nil {
		log.Info().Msg("consuming stock intake...")
		intake := queue.NewIntakeQueue(bq, cfg.RabbitMQ.Intake.Queue, cfg.RabbitMQ.Intake.Dlt.Exchange)
		go intake.ConsumeStock(ctx, svc.Stock)
	}

	serve(ctx, cfg, r)
}

func configServices(ctx context.Context, cfg *config.Config, repos repositories, q queue.Publisher) (api.Services, error) {
	log.Info().Msg("creating stock service...")
	stockService := stock.NewService(repos.stock, q)

	log.Info().Msg("creating scan gate...")
	gate, err := scan.NewGate(scan.TTL(cfg.Scan.TTL), scan.MaxChallenges(cfg.Scan.MaxChallenges))
	if err != nil {
		return api.Services{}, err
	}

	log.Info().Msg("creating order service...")
	orderService := order.NewService(repos.orders, repos.stock, gate, stockService, q)

	log.Info().Msg("creating user service...")
	userService := user.NewService(repos.users)
	if err = userService.EnsureAdmin(ctx, cfg.Admin.User, cfg.Admin.Pass); err != nil {
		return api.Services{}, err
	}

	return api.Services{
		Stock:   stockService,
		Orders:  orderService,
		Gate:    gate,
		Reports: report.NewService(stockService, orderService),
		Users:   userService,
	}, nil
}

type repositories struct {
	stock  stock.Repository
	orders order.Repository
	users  user.Repository
}

func configRepositories(ctx context.Context, cfg *config.Config) repositories {
	if cfg.Db.InMemory {
		log.Info().Msg("using the in memory database")
		store := memrepo.New()
		return repositories{stock: store, orders: store, users: store}
	}

	pool, err := db.ConnectDb(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to the database")
	}
	return repositories{
		stock:  stockrepo.NewPostgresRepo(pool),
		orders: orderrepo.NewPostgresRepo(pool),
		users:  usrrepo.NewPostgresRepo(pool),
	}
}

func configQueue(bq *bunnyq.BunnyQ, cfg *config.Config) queue.Publisher {
	if bq == nil {
		log.Info().Msg("rabbitmq is mocked, stock and order updates will not be published")
		return queue.NewDiscardQueue()
	}
	log.Info().Msg("connecting to rabbitmq...")
	return queue.New(bq, cfg.RabbitMQ.Stock.Exchange, cfg.RabbitMQ.Order.Exchange)
}

func rabbit(cfg *config.Config) *bunnyq.BunnyQ {
	osChannel := make(chan os.Signal, 1)
	signal.Notify(osChannel, syscall.SIGTERM)

	return bunnyq.New(context.Background(),
		bunnyq.Address{
			User: cfg.RabbitMQ.User,
			Pass: cfg.RabbitMQ.Pass,
			Host: cfg.RabbitMQ.Host,
			Port: cfg.RabbitMQ.Port,
		},
		osChannel,
		bunnyq.LogHandler(logger{}),
	)
}

func serve(ctx context.Context, cfg *config.Config, r chi.Router) {
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shut down cleanly")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Send()
	}
}

func printRoutes(r chi.Router) {
	fmt.Println(docgen.JSONRoutesDoc(r))
}

type logger struct {
}

func (l logger) Log(_ context.Context, level bunnyq.LogLevel, msg string, data map[string]interface{}) {
	var evt *zerolog.Event
	switch level {
	case bunnyq.LogLevelTrace:
		evt = log.Trace()
	case bunnyq.LogLevelDebug:
		evt = log.Debug()
	case bunnyq.LogLevelInfo:
		evt = log.Info()
	case bunnyq.LogLevelWarn:
		evt = log.Warn()
	case bunnyq.LogLevelError:
		evt = log.Error()
	default:
		evt = log.Info()
	}

	for k, v := range data {
		evt.Interface(k, v)
	}

	evt.Msg(msg)
}

func printLogHeader(cfg *config.Config) {
	if cfg.Log.Structured {
		log.Info().Str("application", cfg.AppName).
			Str("revision", cfg.Revision).
			Str("version", cfg.AppVersion).
			Str("sha1ver", cfg.Sha1Version).
			Str("build-time", cfg.BuildTime).
			Str("profile", cfg.Profile).
			Str("config-source", cfg.Config.Source).
			Str("config-branch", cfg.Config.Spring.Branch).
			Send()
	} else {
		f := figure.NewFigure(cfg.AppName, "", true)
		f.Print()

		log.Info().Msg("=============================================")
		log.Info().Msg(fmt.Sprintf("       Revision: %s", cfg.Revision))
		log.Info().Msg(fmt.Sprintf("        Profile: %s", cfg.Profile))
		log.Info().Msg(fmt.Sprintf("  Config Server: %s - %s", cfg.Config.Source, cfg.Config.Spring.Branch))
		log.Info().Msg(fmt.Sprintf("    Tag Version: %s", cfg.AppVersion))
		log.Info().Msg(fmt.Sprintf("   Sha1 Version: %s", cfg.Sha1Version))
		log.Info().Msg(fmt.Sprintf("     Build Time: %s", cfg.BuildTime))
		log.Info().Msg("=============================================")
	}
}

func configLogging(cfg *config.Config) {
	log.Info().Msg("configuring logging...")

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	if !cfg.Log.Structured {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("loglevel", cfg.Log.Level).Err(err).Msg("defaulting to info")
		level = zerolog.InfoLevel
	}
	log.Info().Str("loglevel", level.String()).Msg("setting log level")
	zerolog.SetGlobalLevel(level)
}
