package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/kids-class-booking/internal/billing"
	"github.com/iliyamo/kids-class-booking/internal/booking"
	"github.com/iliyamo/kids-class-booking/internal/config"
	"github.com/iliyamo/kids-class-booking/internal/database"
	"github.com/iliyamo/kids-class-booking/internal/handler"
	"github.com/iliyamo/kids-class-booking/internal/model"
	"github.com/iliyamo/kids-class-booking/internal/obs"
	"github.com/iliyamo/kids-class-booking/internal/queue"
	"github.com/iliyamo/kids-class-booking/internal/router"
	"github.com/iliyamo/kids-class-booking/internal/store"
	"github.com/iliyamo/kids-class-booking/internal/store/memory"
	"github.com/iliyamo/kids-class-booking/internal/store/mongo"
	"github.com/iliyamo/kids-class-booking/internal/store/mysql"
	"github.com/iliyamo/kids-class-booking/internal/tpay"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer := obs.InitTracer("kids-class-booking")

	st := openStore(ctx, cfg)

	var events queue.Publisher = queue.Discard{}
	if cfg.AMQPURL != "" {
		pub, err := queue.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Printf("events: broker unavailable, publishing disabled: %v", err)
		} else {
			events = pub
			defer pub.Close()
			go func() {
				if err := queue.StartAuditConsumer(ctx, cfg.AMQPURL, cfg.LogDir); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("audit-consumer: stopped: %v", err)
				}
			}()
		}
	}

	gwCfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("gateway config: %v", err)
	}
	var gateway billing.Gateway
	if gwCfg.Enabled() {
		client, err := tpay.NewClient(tpay.Config{
			BaseURL:      gwCfg.ResolvedBaseURL(),
			ClientID:     gwCfg.ClientID,
			ClientSecret: gwCfg.ClientSecret,
			MaxAttempts:  gwCfg.MaxAttempts,
			HTTPClient:   &http.Client{Timeout: gwCfg.Timeout},
		})
		if err != nil {
			log.Fatalf("tpay client: %v", err)
		}
		gateway = client
	} else {
		log.Printf("tpay: TPAY_CLIENT_ID/TPAY_CLIENT_SECRET not set, online payments disabled")
	}
	if !gwCfg.WebhookEnabled() {
		log.Printf("tpay: TPAY_MD5_SECRET not set, notifications will be ignored")
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	engine := booking.NewEngine(st, cfg.Location)
	h := router.Handlers{
		Reservations: handler.NewReservationHandler(booking.NewService(st, engine, events)),
		Payments:     handler.NewPaymentHandler(billing.NewCheckout(st, gateway, gwCfg.AppURL, cfg.Location)),
		Webhook:      handler.NewWebhookHandler(billing.NewFinalizer(st, engine, events, cfg.LeaseTTL), gwCfg.MD5Secret),
		Classes:      handler.NewClassHandler(st, cfg.Location),
		Entitlements: handler.NewEntitlementHandler(st, cfg.Location),
	}
	opts := router.Options{
		JWTSecret: cfg.JWTSecret,
		RDB:       rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, h, opts)
	router.RegisterParent(e, h, opts)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, store=%s, tz=%s)", addr, cfg.Env, cfg.StoreDriver, cfg.Location)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := st.Close(sctx); err != nil {
		log.Printf("store close: %v", err)
	}
	if err := shutdownTracer(sctx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}

// openStore connects the configured backend and prepares its schema. The
// memory backend is seeded with the default plan catalog so a fresh
// process can take purchases.
func openStore(ctx context.Context, cfg config.Config) store.Store {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.Open(ctx, database.Params{
			User:     cfg.DBUser,
			Password: cfg.DBPass,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Name:     cfg.DBName,
		})
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		s := mysql.New(db)
		if err := s.Migrate(ctx); err != nil {
			log.Fatalf("mysql migrate: %v", err)
		}
		return s
	case config.DriverMongo:
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("mongo: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			log.Fatalf("mongo migrate: %v", err)
		}
		return s
	default:
		s := memory.New()
		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			for _, p := range model.DefaultPlans() {
				if err := tx.PutPlan(ctx, &p); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Fatalf("memory seed: %v", err)
		}
		log.Printf("store: using in-memory backend, data is lost on exit")
		return s
	}
}
