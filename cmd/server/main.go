package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/AnshRaj112/connectpro-relay/internal/config"
	"github.com/AnshRaj112/connectpro-relay/internal/database"
	"github.com/AnshRaj112/connectpro-relay/internal/handlers"
	"github.com/AnshRaj112/connectpro-relay/internal/middleware"
	"github.com/AnshRaj112/connectpro-relay/internal/relay"
	"github.com/AnshRaj112/connectpro-relay/internal/routes"
	"github.com/AnshRaj112/connectpro-relay/internal/services"
	"github.com/AnshRaj112/connectpro-relay/internal/transport"
	"github.com/AnshRaj112/connectpro-relay/pkg/utils"
)

// devToken switches the process to the local WebSocket playground
// instead of the real chat platform.
const devToken = "dev"

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	// Check encryption key (warn if not set, but don't fail)
	if cfg.EncryptionKey == "" {
		log.Println("⚠️  WARNING: ENCRYPTION_KEY not set. Dedicated relay tokens cannot be stored.")
		log.Println("   To generate a key, run: openssl rand -base64 32")
	} else if _, err := utils.GetEncryptionKey(); err != nil {
		log.Printf("⚠️  WARNING: ENCRYPTION_KEY is invalid: %v", err)
	} else {
		log.Println("✅ Encryption key configured")
	}

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	if err := database.Connect(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.Disconnect()

	if err := services.EnsureMessageIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB message indexes: %v", err)
	} else {
		log.Println("✅ MongoDB message indexes ensured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage services
	owners := services.NewOwnerService()
	users := services.NewEndUserService()
	msgs := services.NewMessageService()
	payments := services.NewPaymentService(cfg.PaymentSecret, cfg.PaymentGatewayURL)
	stats := services.NewStatsService(owners, users, msgs)

	// Chat transport: real bot client, or the dev playground when
	// BOT_TOKEN=dev.
	var (
		sender      transport.Sender
		bot         *transport.BotClient
		devHub      *transport.DevHub
		botUsername string
		router      *relay.Router
	)
	if cfg.BotToken == devToken {
		devHub = transport.NewDevHub(func(ev transport.Event) {
			router.Handle(ctx, ev)
		})
		sender = devHub
		botUsername = "connectpro_dev_bot"
		log.Println("⚠️  Dev transport active: chat runs over /api/dev/socket")
	} else {
		bot = transport.NewBotClient(cfg.BotToken)
		sender = bot
		name, err := bot.Me(ctx)
		if err != nil {
			log.Fatal("Failed to reach chat platform:", err)
		}
		botUsername = name
		log.Printf("✅ Connected to chat platform as @%s", botUsername)
	}

	// Logo mirroring (optional)
	var logos relay.LogoMirror
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" && bot != nil {
		ls, err := services.NewLogoService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, bot.FetchFile)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
		} else {
			logos = ls
			log.Println("✅ Cloudinary logo mirroring initialized")
		}
	} else {
		log.Println("Warning: Cloudinary not configured. Logos keep platform file references")
	}

	// Relay core
	sessions := relay.NewSessionStore()
	spam := relay.NewAntiSpam(cfg.MinMessageInterval)
	wizard := relay.NewWizard(sessions, owners, owners, payments, logos, sender, cfg.PendingPaymentTTL, botUsername)

	var validateToken relay.TokenValidator
	if bot != nil {
		validateToken = transport.ValidateToken
	}
	router = relay.NewRouter(relay.RouterConfig{
		Sessions:      sessions,
		Spam:          spam,
		Dir:           owners,
		Users:         users,
		Msgs:          msgs,
		Wizard:        wizard,
		Sender:        sender,
		ValidateToken: validateToken,
		EncryptToken:  utils.EncryptToken,
		AdminIDs:      cfg.AdminIDs,
		Stats:         stats,
		BotUsername:   botUsername,
		TrialDays:     cfg.TrialDays,
	})

	// Background jobs
	trialMonitor := relay.NewTrialMonitor(owners, sender, nil)
	trialMonitor.Start(ctx, time.Hour)
	services.StartRetentionSweeper(ctx, msgs, owners, cfg.RetentionDays, cfg.PendingPaymentTTL, 24*time.Hour)

	// HTTP surface
	handlers.InitPaymentHandlers(payments, wizard)
	handlers.InitAdminHandlers(owners, trialMonitor, stats)

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.GlobalRateLimit)
		r.Use(middleware.WebhookRateLimit)
		log.Println("✅ Production security enabled (security headers, per-IP rate limiting)")
	}

	var devSocket http.Handler
	if devHub != nil && !cfg.IsProduction() {
		devSocket = devHub
	}
	routes.SetupRoutes(r, cfg.AdminTokenHash, devSocket)

	// Inbound chat events
	if bot != nil {
		go bot.Poll(ctx, func(ev transport.Event) {
			router.Handle(ctx, ev)
		})
		log.Println("✅ Long polling started")
	}

	log.Printf("🚀 ConnectPro relay running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
