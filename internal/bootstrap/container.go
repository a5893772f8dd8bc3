package bootstrap

import (
	"context"
	"log"

	"fieldops-notify-be/internal/config"
	"fieldops-notify-be/internal/handler"
	"fieldops-notify-be/internal/pkg/clock"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/repository/implementation"
	"fieldops-notify-be/internal/scheduler"
	"fieldops-notify-be/internal/service"
	"fieldops-notify-be/internal/websocket"
	"fieldops-notify-be/pkg/channels"
	pktNats "fieldops-notify-be/pkg/nats"
	"fieldops-notify-be/pkg/template"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// HTTP surface
	NotificationHandler *handler.NotificationHandler

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService
	EventService    service.IEventService
	Scheduler       *scheduler.Scheduler
	WebSocketHub    *websocket.Hub

	// Held for shutdown
	NatsPublisher  *pktNats.Publisher
	NatsSubscriber *pktNats.Subscriber
	Logger         logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	sysClock := clock.System()

	// 2. Internal queue
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. External infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 4. WebSocket hub
	wsHub := websocket.NewHub(rdb, sysLogger)
	go wsHub.Run()

	// 5. Repositories
	notifRepo := implementation.NewNotificationRepository(db)
	userDir := implementation.NewUserDirectory(db)

	// 6. Channel senders
	senders := channels.SenderTable(
		channels.NewInAppSender(wsHub),
		channels.NewEmailSender(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.Email,
			cfg.SMTP.SenderName,
			sysLogger,
		),
		channels.NewPushSender(cfg.Push.ProviderURL, cfg.Push.ServerKey, sysLogger),
		channels.NewSMSSender(cfg.SMS.ProviderURL, cfg.SMS.APIKey, cfg.SMS.Sender, sysLogger),
	)

	// 7. Services
	registry := template.NewRegistry(template.Builtin())

	storeService := service.NewNotificationService(notifRepo, sysClock, sysLogger)
	prefService := service.NewPreferenceService(notifRepo, sysLogger)
	dispatchService := service.NewDispatchService(senders, userDir, storeService, sysClock, cfg.Dispatch, sysLogger)

	// A nil *Publisher assigned directly would not compare equal to a
	// nil interface inside the service.
	var eventBus service.EventPublisher
	if natsPub != nil {
		eventBus = natsPub
	}

	sendService := service.NewSendService(
		userDir,
		prefService,
		storeService,
		dispatchService,
		registry,
		eventBus,
		sysClock,
		cfg.Bulk,
		sysLogger,
	)

	consumerService := service.NewConsumerService(pubSub, cfg.Dispatch.QueueTopic, sendService, sysLogger)

	var eventService service.IEventService
	if natsSub != nil {
		eventService = service.NewEventService(natsSub, sendService, sysLogger)
	}

	sched := scheduler.New(storeService, sendService, cfg.Dispatch.ScheduleInterval, sysLogger)

	// 8. Handler
	notifHandler := handler.NewNotificationHandler(
		sendService,
		storeService,
		dispatchService,
		prefService,
		pubSub,
		cfg.Dispatch.QueueTopic,
		wsHub,
		sysLogger,
	)

	return &Container{
		NotificationHandler: notifHandler,
		ConsumerService:     consumerService,
		EventService:        eventService,
		Scheduler:           sched,
		WebSocketHub:        wsHub,
		NatsPublisher:       natsPub,
		NatsSubscriber:      natsSub,
		Logger:              sysLogger,
	}
}
