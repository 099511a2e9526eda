package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/config"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/controllers"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/database"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/logger"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/middleware"
	aws_pkg "github.com/Maddyahamco00/Nigeria-bece-sub000/pkg/aws"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/providers"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/repository"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/routes"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/sender"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "bece-payments"

// App owns every long-lived dependency of the payment service. Both the HTTP
// server and becectl build one.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	Metrics    *aws_pkg.MetricsClient
	Payments   services.PaymentService
	PaymentsDB repository.PaymentRepository
	Reconciler *services.Reconciler

	worker *services.NotificationWorker
	queue  services.NotificationQueue
	events services.EventPublisher
	wg     sync.WaitGroup
}

// New connects to Postgres (and Redis when configured) and wires the
// payment orchestrator with its gateway, notifier and event bus.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	var awsCfg sdkaws.Config
	if needsAWS(cfg) {
		loaded, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = loaded
	}

	var sink io.Writer
	if cfg.CloudWatchEnabled {
		cw, err := aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, "", serviceName)
		if err != nil {
			return nil, fmt.Errorf("cloudwatch logs: %w", err)
		}
		sink = cw
	}
	log, err := logger.New(cfg.AppEnv, sink)
	if err != nil {
		return nil, err
	}
	a.Logger = log
	a.Metrics = aws_pkg.NewMetricsClient(awsCfg, "", cfg.CloudWatchEnabled)

	db, err := database.ConnectPostgres(cfg.PostgresDSN(), log)
	if err != nil {
		return nil, err
	}
	a.DB = db

	var locker services.ReferenceLocker
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			// Settlement is still correct without the lock; it only loses
			// cross-instance deduplication.
			log.Warn("Redis unavailable, reference lock disabled", zap.Error(err))
		} else {
			a.Redis = rdb
			locker = services.NewRedisReferenceLocker(rdb, 30*time.Second)
		}
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.events, err = newEventPublisher(cfg, awsCfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	notificationRepo := repository.NewNotificationRepository(db)
	if cfg.NotificationQueueURL != "" {
		a.queue = services.NewSQSNotificationQueue(aws_pkg.NewSQSQueue(awsCfg, cfg.NotificationQueueURL, log))
	} else {
		a.queue = services.NewChannelQueue(256)
	}
	emailSender, smsSender := newSenders(cfg, log)
	a.worker, err = services.NewNotificationWorker(notificationRepo, emailSender, smsSender, cfg.AdminEmail, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.PaymentsDB = repository.NewGormPaymentRepository(db)
	a.Payments = services.NewPaymentService(services.PaymentServiceDeps{
		Payments:      a.PaymentsDB,
		Candidates:    repository.NewGormCandidateRepository(db),
		Sequences:     repository.NewGormSequenceRepository(db),
		UnitOfWork:    repository.NewGormUnitOfWork(db),
		References:    repository.NewGormReferenceRepository(db),
		GatewayEvents: repository.NewGormGatewayEventRepository(db),
		Gateway:       gateway,
		Codes:         services.NewCodeGenerator(time.Now),
		Receipts:      services.NewReceiptIssuer(cfg.ReceiptTokenSecret, cfg.ReceiptTokenTTL),
		Notifier:      services.NewNotificationDispatcher(a.queue, a.Metrics, log),
		Events:        a.events,
		Metrics:       a.Metrics,
		Locker:        locker,
		Logger:        log,
	}, services.PaymentSettings{
		Currency:            cfg.Currency,
		RegistrationFeeKobo: cfg.RegistrationFeeKobo,
		CallbackURL:         cfg.CallbackURL,
		ReceiptURL:          cfg.ReceiptURL(),
	})
	a.Reconciler = services.NewReconciler(a.PaymentsDB, a.Payments, cfg.ReconcileMinAge, cfg.ReconcileMaxAge, 100, log)

	log.Info("Payment service wired",
		zap.String("provider", gateway.Name()),
		zap.String("event_bus", cfg.EventBus),
		zap.Bool("redis_lock", locker != nil),
		zap.Bool("sqs_notifications", cfg.NotificationQueueURL != ""),
	)
	return a, nil
}

// Router builds the gin engine with the full middleware chain.
func (a *App) Router(ctx context.Context) *gin.Engine {
	if a.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(a.Logger),
		middleware.MetricsMiddleware(a.Metrics, serviceName),
		middleware.SecurityHeaders(),
		middleware.Timeout(30*time.Second),
	)

	var pinger controllers.Pinger
	if sqlDB, err := a.DB.DB(); err == nil {
		pinger = sqlDB
	}
	r.GET("/health", controllers.Health(pinger))

	routes.RegisterPaymentRoutes(ctx, r, controllers.NewPaymentController(a.Payments, a.Logger), routes.Options{
		AllowedOrigins:  a.Config.AllowedOrigins,
		RateLimitPerMin: a.Config.RateLimitPerMin,
	})
	return r
}

// StartBackground launches the notification worker and the reconciler. They
// stop when ctx is cancelled; Close waits for them.
func (a *App) StartBackground(ctx context.Context) {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.worker.Run(ctx, a.queue)
	}()
	go func() {
		defer a.wg.Done()
		a.Reconciler.Start(ctx, a.Config.ReconcileInterval)
	}()
}

// FlushNotifications delivers whatever the in-process queue still holds.
// SQS-backed queues keep their jobs and need no flush.
func (a *App) FlushNotifications(ctx context.Context) int {
	cq, ok := a.queue.(*services.ChannelQueue)
	if !ok || a.worker == nil {
		return 0
	}
	return cq.Drain(ctx, a.worker.Deliver)
}

// Close waits for background work, flushes pending notifications and
// releases connections.
func (a *App) Close() {
	a.wg.Wait()
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if n := a.FlushNotifications(flushCtx); n > 0 {
		a.Logger.Info("Flushed queued notifications", zap.Int("count", n))
	}
	cancel()
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.Logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if err := database.Close(a.DB); err != nil {
		a.Logger.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

func needsAWS(cfg *config.Config) bool {
	return cfg.CloudWatchEnabled || cfg.EventBus == config.EventBusSNS || cfg.NotificationQueueURL != ""
}

func newGateway(cfg *config.Config) (providers.Gateway, error) {
	switch cfg.PaymentProvider {
	case config.ProviderPaystack:
		return providers.NewPaystackGateway(cfg.PaystackSecretKey, cfg.PaystackBaseURL, cfg.GatewayTimeout), nil
	case config.ProviderStripe:
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient:        &http.Client{Timeout: cfg.GatewayTimeout},
			MaxNetworkRetries: stripe.Int64(1),
		})
		backends := &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
		return providers.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, backends), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", cfg.PaymentProvider)
	}
}

func newEventPublisher(cfg *config.Config, awsCfg sdkaws.Config, log *zap.Logger) (services.EventPublisher, error) {
	switch cfg.EventBus {
	case config.EventBusSNS:
		if cfg.PaymentSNSTopicARN == "" {
			return nil, errors.New("PAYMENT_SNS_TOPIC_ARN not set for EVENT_BUS=sns")
		}
		return services.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN), nil
	case config.EventBusKafka:
		return services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log), nil
	default:
		return services.NoopEventPublisher{}, nil
	}
}

// newSenders returns nil for any channel that is not configured.
func newSenders(cfg *config.Config, log *zap.Logger) (sender.EmailSender, sender.SMSSender) {
	var email sender.EmailSender
	if cfg.SMTPHost != "" {
		s, err := sender.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		if err != nil {
			log.Warn("SMTP sender disabled", zap.Error(err))
		} else {
			email = s
		}
	}
	var sms sender.SMSSender
	if cfg.TwilioAccountSID != "" {
		s, err := sender.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.TwilioBaseURL)
		if err != nil {
			log.Warn("Twilio sender disabled", zap.Error(err))
		} else {
			sms = s
		}
	}
	return email, sms
}
