package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"

	"obrolan/internal/handlers"
	"obrolan/internal/middleware"
	"obrolan/internal/models"
	"obrolan/internal/repositories"
	"obrolan/internal/services"
	"obrolan/pkg/rabbitmq"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":5000")
	viper.SetDefault("DATABASE_URL", "obrolan.db")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("COOKIE_SECURE", false)
	viper.AutomaticEnv()

	appPort := viper.GetString("APP_PORT")
	databaseURL := viper.GetString("DATABASE_URL")
	rabbitMQURL := viper.GetString("RABBITMQ_URL")
	secureCookies := viper.GetBool("COOKIE_SECURE")

	// The signing secret has no default. Refusing to boot without it is
	// the alternative to silently issuing tokens signed with "".
	jwtSecret := viper.GetString("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set; refusing to start")
	}

	// --- Database ---
	db, err := openDatabase(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Message{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- RabbitMQ (optional) ---
	// Message-event fan-out is auxiliary: with no broker configured the
	// HTTP surface still works. A configured but unreachable broker is a
	// boot failure.
	var mqClient *rabbitmq.Client
	if rabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: rabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
	} else {
		log.Println("RABBITMQ_URL not set, message events disabled")
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	messageRepo := repositories.NewGORMMessageRepository(db)

	// --- Services ---
	authService := services.NewAuthService(userRepo, jwtSecret)
	chatService := services.NewChatService(messageRepo, userRepo, mqClient)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService, secureCookies)
	chatHandler := handlers.NewChatHandler(chatService)

	// --- Fiber App ---
	app := fiber.New()
	app.Use(logger.New())

	api := app.Group("/api")

	// Public authentication routes
	authHandler.RegisterRoutes(api)

	// Routes behind the session cookie
	protected := api.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)
	chatHandler.RegisterRoutes(protected)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Message Event Consumer ---
	if mqClient != nil {
		log.Println("Starting RabbitMQ consumer for chat events...")
		messageHandler := func(msg amqp.Delivery) error {
			// Placeholder for delivery-side processing (push
			// notifications, unread counters). For now the event is
			// only logged.
			log.Printf("Received chat event (Tag: %d): %s", msg.DeliveryTag, string(msg.Body))
			return nil
		}
		if consumerErr := mqClient.ConsumeMessageEvents(messageHandler); consumerErr != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
		}
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase opens the user directory. A postgres:// URL selects the
// Postgres driver; anything else is treated as a SQLite path, which doubles
// as the zero-config default. TranslateError is required so unique-index
// violations surface as gorm.ErrDuplicatedKey.
func openDatabase(databaseURL string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{TranslateError: true}
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return gorm.Open(postgres.Open(databaseURL), gormConfig)
	}
	return gorm.Open(sqlite.Open(databaseURL), gormConfig)
}
