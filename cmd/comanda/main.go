package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appetiteclub/comanda/internal/announce"
	"github.com/appetiteclub/comanda/internal/board"
	"github.com/appetiteclub/comanda/internal/comanda"
	"github.com/appetiteclub/comanda/internal/courier"
	"github.com/appetiteclub/comanda/internal/localstore"
	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/internal/prefs"
	"github.com/appetiteclub/comanda/internal/preptimer"
	"github.com/appetiteclub/comanda/internal/submission"
	"github.com/appetiteclub/comanda/internal/tracking"
	"github.com/appetiteclub/comanda/pkg"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"
)

const (
	appNamespace = "COMANDA"
	appName      = "comanda"
	appVersion   = "0.1.0"
)

type statusSubscriber interface {
	Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error
}

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	registry := metrics.NewRegistry()

	orders, err := order.NewOrderDataAccess(config, logger)
	if err != nil {
		log.Fatalf("Cannot setup orders backend: %v", err)
	}

	store, err := localstore.Open(config, logger)
	if err != nil {
		log.Fatalf("Cannot setup local store: %v", err)
	}

	// Interfaces stay nil without a broker; the board and courier then rely
	// on reloads and tracking on polling.
	var (
		publisher   events.Publisher
		push        tracking.PushSource
		boardEvents statusSubscriber
		courierFeed statusSubscriber
	)

	natsURL, _ := config.GetString("nats.url")
	if natsURL != "" {
		natsPublisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			log.Fatalf("Cannot connect to NATS publisher: %v", err)
		}
		defer natsPublisher.Close()

		natsSubscriber, err := pkg.NewNATSSubscriber(natsURL)
		if err != nil {
			log.Fatalf("Cannot connect to NATS subscriber: %v", err)
		}
		defer natsSubscriber.Close()

		publisher = natsPublisher
		push = natsSubscriber
		boardEvents = natsSubscriber
		courierFeed = natsSubscriber

		if enabled, _ := config.GetString("nats.stream.enabled"); enabled == "true" {
			boardStream, err := newStatusStream(ctx, config, natsURL, "comanda-board")
			if err != nil {
				log.Fatalf("Cannot setup board status stream: %v", err)
			}
			defer boardStream.Close()

			courierStream, err := newStatusStream(ctx, config, natsURL, "comanda-courier")
			if err != nil {
				log.Fatalf("Cannot setup courier status stream: %v", err)
			}
			defer courierStream.Close()

			boardEvents = boardStream
			courierFeed = courierStream
		}
	} else {
		logger.Info("nats.url not set, running without push channel")
	}

	announcer := announce.New(publisher, config, logger)
	prep := preptimer.New(store, registry, logger)
	hub := tracking.NewHub(orders, push, config, registry, logger)
	boardStore := board.NewStore(orders, prep, announcer, registry, config, logger)
	flow := courier.NewFlow(orders, store, announcer, registry, logger)

	handler := comanda.NewHandler(comanda.HandlerDeps{
		Board:    boardStore,
		Prep:     prep,
		Tracking: hub,
		Courier:  flow,
		Pipeline: submission.NewPipeline(orders, hub, registry, logger),
		Prefs:    prefs.New(store, logger),
		Metrics:  registry,
	}, config, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: logger,
	})

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(
			store,
			hub,
			board.NewStatusSubscriber(boardEvents, boardStore, logger),
			courier.NewStatusSubscriber(courierFeed, flow, logger),
		),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped with error: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func newStatusStream(ctx context.Context, config *aqm.Config, url, consumer string) (*pkg.NATSStream, error) {
	name, _ := config.GetString("nats.stream.name")
	if name == "" {
		name = "ORDER_STATUS"
	}

	maxAge := 24 * time.Hour
	if raw, _ := config.GetString("nats.stream.maxage"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			maxAge = d
		}
	}

	return pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
		URL:          url,
		StreamName:   name,
		Topic:        event.OrderStatusTopic,
		ConsumerName: consumer,
		MaxAge:       maxAge,
	})
}
