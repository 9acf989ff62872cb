package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gozon/storefront/internal/config"
	"gozon/storefront/internal/fulfillment"
	"gozon/storefront/internal/httpapi"
	"gozon/storefront/internal/order"
	"gozon/storefront/internal/paymob"
	"gozon/storefront/internal/storage"
	"gozon/storefront/internal/websocket"
	"gozon/storefront/pkg/contracts"
	"gozon/storefront/pkg/messaging"

	"github.com/rabbitmq/amqp091-go"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	wsHub     *websocket.Hub
	publisher messaging.Publisher
	outbox    *messaging.OutboxDispatcher
	consumer  *messaging.Consumer
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if cfg.PaymobHMACSecret == "" {
		return nil, errors.New("PAYMOB_HMAC_SECRET is not set")
	}

	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	orders := order.NewRepository(store.Pool())
	fulfiller := fulfillment.NewService(orders, paymob.NewVerifier(cfg.PaymobHMACSecret), logger)
	wsHub := websocket.NewHub()

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.OrdersExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.OrdersExchange, cfg.TrackingQueue, logger)
	if err != nil {
		store.Close()
		publisher.Close()
		return nil, err
	}

	api := httpapi.NewServer(fulfiller, orders, store, logger)
	wsHandler := websocket.NewHandler(wsHub, orders, logger)
	api.HandleFunc("GET /orders/{orderID}/ws", wsHandler.ServeWS)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	outbox := messaging.NewOutboxDispatcher(store.Pool(), publisher, "order_outbox", cfg.OutboxInterval, cfg.OutboxBatchSize, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		wsHub:     wsHub,
		publisher: publisher,
		consumer:  consumer,
		outbox:    outbox,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	a.outbox.Start(ctx)

	go a.wsHub.Run(ctx)

	go func() {
		if err := a.consumer.Start(ctx, a.handleStatusEvent); err != nil {
			errCh <- fmt.Errorf("tracking consumer: %w", err)
		}
	}()

	go func() {
		a.logger.Info("storefront http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	a.consumer.Close()
	a.publisher.Close()
	a.store.Close()
}

// handleStatusEvent pushes a committed status change to websocket watchers.
// The outbox already guarantees delivery, so a broadcast is never requeued.
func (a *App) handleStatusEvent(ctx context.Context, msg amqp091.Delivery) {
	if msg.Type != "" && msg.Type != contracts.EventOrderStatusChanged {
		_ = msg.Ack(false)
		return
	}

	var evt contracts.OrderStatusChangedEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		a.logger.Error("invalid order status event", "message_id", msg.MessageId, "err", err)
		_ = msg.Nack(false, false)
		return
	}

	a.wsHub.Broadcast(websocket.OrderUpdate{
		OrderID:       evt.OrderID,
		Status:        evt.Status,
		PaymentStatus: evt.PaymentStatus,
		Description:   evt.Description,
	})
	_ = msg.Ack(false)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Serve runs the service until SIGINT or SIGTERM.
func Serve(cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}

// Migrate applies the embedded schema and exits.
func Migrate(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)
	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store.Close()
	logger.Info("schema is up to date")
	return nil
}
