package main

import (
	bookingshandler "deskly/internal/bookings/handler"
	"deskly/internal/bookings/index"
	bookingsrepository "deskly/internal/bookings/repository"
	bookingsservice "deskly/internal/bookings/service"
	bookingsvalidator "deskly/internal/bookings/validator"
	"deskly/internal/notifications"
	resourceshandler "deskly/internal/resources/handler"
	resourcesrepository "deskly/internal/resources/repository"
	resourcesservice "deskly/internal/resources/service"
	resourcesvalidator "deskly/internal/resources/validator"
	"deskly/pkg/app"
	"deskly/pkg/config"
	"deskly/pkg/kafka"
	kafkaconfig "deskly/pkg/kafka/config"
	kafkamiddleware "deskly/pkg/kafka/middleware"
)

const ServiceName = "deskly"

func main() {
	cfg := config.Load(ServiceName)

	if cfg.ArchiveEnabled() {
		cfg.SetMongo()
		defer cfg.GracefulShutdown()
	}

	cfg.Log.Info("Starting booking service")

	resourceRepo := resourcesrepository.NewMemoryResourceRepository()
	resourceService := resourcesservice.NewResourceService(
		resourceRepo,
		resourcesvalidator.NewResourceValidator(cfg.Log),
		cfg,
	)

	emitter, producer := initEmitter(cfg)
	if producer != nil {
		defer func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close kafka producer", "error", err)
			}
		}()
	}

	bookingService := bookingsservice.NewBookingService(
		bookingsrepository.NewMemoryBookingRepository(),
		initArchive(cfg),
		index.New(),
		bookingsservice.NewRepositoryCatalog(resourceRepo),
		emitter,
		bookingsvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
		resourceshandler.NewResourceHandler(resourceService, cfg.Log),
	)
	serverApp.Run()
}

func initArchive(cfg *config.Config) bookingsrepository.BookingArchive {
	if !cfg.ArchiveEnabled() {
		cfg.Log.Info("Booking archive disabled, bookings are kept in memory only")
		return bookingsrepository.NewNoopBookingArchive()
	}
	cfg.Log.Info("Booking archive enabled", "database", cfg.MongoDatabaseName)
	return bookingsrepository.NewMongoBookingArchive(cfg)
}

func initEmitter(cfg *config.Config) (notifications.Emitter, *kafka.Producer) {
	if cfg.NotificationsTopic == "" {
		cfg.Log.Info("Notifications topic not configured, events are logged only")
		return notifications.NewLogEmitter(cfg.Log), nil
	}

	producer, err := kafka.NewProducer(kafkaconfig.Load(), cfg.NotificationsTopic, cfg.NotificationsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))

	cfg.Log.Info("Booking notifications enabled",
		"topic", cfg.NotificationsTopic,
		"dlq_topic", cfg.NotificationsDLQTopic,
	)
	return notifications.NewKafkaEmitter(producer, ServiceName, cfg.Log), producer
}
