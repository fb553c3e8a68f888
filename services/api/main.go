package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodlink/internal/auth"
	"github.com/bloodlink/internal/chat"
	"github.com/bloodlink/internal/config"
	"github.com/bloodlink/internal/donor"
	"github.com/bloodlink/internal/email"
	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/handler"
	"github.com/bloodlink/internal/live"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/push"
	"github.com/bloodlink/internal/repository"
	repomem "github.com/bloodlink/internal/repository/memory"
	"github.com/bloodlink/internal/request"
	"github.com/bloodlink/internal/startup"
	"github.com/bloodlink/internal/storage"
	storagemem "github.com/bloodlink/internal/storage/memory"
	"github.com/bloodlink/internal/ws"
	"github.com/bloodlink/migrations"
)

// userStore is the union of user persistence the handlers and live loops
// need. Both the PostgreSQL repository and the in-memory store satisfy it.
type userStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
	UpdateAvailability(ctx context.Context, id string, a model.Availability, updatedAt time.Time) error
	UpdateLocation(ctx context.Context, id string, loc geo.Coordinates, updatedAt time.Time) error
	List(ctx context.Context) ([]model.User, error)
	ListByBloodGroup(ctx context.Context, bloodGroup, excludeID string) ([]string, error)
}

type chatStore interface {
	chat.ChatStore
	GetByID(ctx context.Context, id string) (*model.Chat, error)
}

type notificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type backends struct {
	users         userStore
	chats         chatStore
	messages      chat.MessageStore
	requests      request.Store
	notifications notificationStore
}

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	mem := flag.Bool("memory", false, "run fully in-memory (no PostgreSQL or Redis, data is lost on exit)")
	flag.Parse()

	logger.Info("starting API service")
	cfg := config.Load()

	var b backends
	var kv storage.Store
	if *mem {
		b = backends{
			users:         repomem.NewUserStore(),
			chats:         repomem.NewChatStore(),
			messages:      repomem.NewMessageStore(),
			requests:      repomem.NewRequestStore(),
			notifications: repomem.NewNotificationStore(),
		}
		kv = storagemem.New()
		logger.Info("running with in-memory stores")
	} else {
		var embeddedDB *embeddedpostgres.EmbeddedPostgres
		if *dev {
			var err error
			embeddedDB, err = startEmbeddedPostgres(cfg)
			if err != nil {
				logger.Errorf("embedded postgres: %v", err)
				os.Exit(1)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}

		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
		if err != nil {
			logger.Errorf("parse db config: %v", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConnections())
		poolCfg.MinConns = 4

		pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
		defer pool.Close()

		runMigrations(pool)
		if *migrate && !*dev {
			return
		}
		logger.Info("database connected, migrations applied")

		b = backends{
			users:         repository.NewUserRepository(pool),
			chats:         repository.NewChatRepository(pool),
			messages:      repository.NewMessageRepository(pool),
			requests:      repository.NewRequestRepository(pool),
			notifications: repository.NewNotificationRepository(pool),
		}
		kv = startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
	}
	defer kv.Close()

	chatSvc := chat.NewService(b.chats, b.messages)
	requestSvc := request.NewService(b.requests, b.users)
	authSvc := auth.NewService(b.users, kv, email.NewSender(&cfg.SMTP))
	pushClient := push.NewClient(cfg.PushServiceURL)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(chatSvc, b.chats, b.users, cfg.MaxWSConnections, pushClient)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	// Live refresh loops: neither store has a change feed, so connected
	// viewers get their donor and chat lists re-pushed on a fixed interval.
	lu := &liveUpdater{hub: hub, users: b.users, chatSvc: chatSvc, kv: kv}
	hubWg.Add(2)
	go func() {
		defer hubWg.Done()
		live.Run(hubCtx, "donors", cfg.PollInterval(), lu.broadcastDonors)
	}()
	go func() {
		defer hubWg.Done()
		live.Run(hubCtx, "chats", cfg.PollInterval(), lu.broadcastChats)
	}()

	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(b.users, kv)
	donorH := handler.NewDonorHandler(b.users, kv, cfg.DefaultRadiusMeters())
	chatH := handler.NewChatHandler(chatSvc, b.chats, b.users)
	msgH := handler.NewMessageHandler(chatSvc, b.chats, hub)
	requestH := handler.NewRequestHandler(requestSvc, chatSvc, b.users, b.notifications, hub, pushClient)
	locationH := handler.NewLocationHandler(b.users, kv)
	notifH := handler.NewNotificationHandler(b.notifications)
	fileH := handler.NewFileHandler(cfg)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)
	configH := handler.NewConfigHandler(cfg)
	pushH := handler.NewPushHandler(pushClient)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Skip compression for WebSocket upgrades: a compressing ResponseWriter
	// does not implement http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id", "X-Timestamp", "X-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/donor", configH.GetDonorConfig)
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/files/{filename}", fileH.Serve)

	r.Post("/api/auth/register", authH.Register)
	r.Post("/api/auth/login", authH.Login)
	r.Post("/api/auth/request-reset", authH.RequestReset)
	r.Post("/api/auth/reset-password", authH.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(kv))
		r.Post("/api/auth/logout", authH.Logout)
		r.Get("/api/users/me", userH.GetProfile)
		r.Put("/api/users/me", userH.UpdateProfile)
		r.Put("/api/users/me/availability", userH.UpdateAvailability)
		r.Get("/api/users/me/onboarding", userH.GetOnboarding)
		r.Put("/api/users/me/onboarding", userH.CompleteOnboarding)
		r.Put("/api/users/me/location", locationH.UpdateLocation)
		r.Get("/api/users/me/location", locationH.GetLastLocation)
		r.Get("/api/users/{id}", userH.GetUser)
		r.Get("/api/donors", donorH.GetDonors)
		r.Get("/api/donors/nearby", donorH.GetNearby)
		r.Get("/api/chats", chatH.GetUserChats)
		r.Post("/api/chats", chatH.CreateChat)
		r.Get("/api/chats/{id}", chatH.GetChat)
		r.Get("/api/chats/{id}/messages", msgH.GetMessages)
		r.Post("/api/chats/{id}/messages", msgH.SendMessage)
		r.Post("/api/chats/{id}/messages/{messageId}/seen", msgH.MarkSeen)
		r.Get("/api/requests", requestH.GetRequests)
		r.Post("/api/requests", requestH.CreateRequest)
		r.Get("/api/requests/{id}", requestH.GetRequest)
		r.Post("/api/requests/{id}/accept", requestH.AcceptRequest)
		r.Post("/api/requests/{id}/cancel", requestH.CancelRequest)
		r.Get("/api/requests/{id}/chat", requestH.GetRequestChat)
		r.Get("/api/notifications", notifH.GetNotifications)
		r.Post("/api/notifications/{id}/read", notifH.MarkRead)
		r.Post("/api/files/upload", fileH.Upload)
		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// liveUpdater re-pushes per-viewer lists to every connected client. Each
// cycle loads the shared data once and fans it out personalized.
type liveUpdater struct {
	hub     *ws.Hub
	users   userStore
	chatSvc *chat.Service
	kv      storage.Store
}

func (l *liveUpdater) broadcastDonors(ctx context.Context) error {
	connected := l.hub.ConnectedUserIDs()
	if len(connected) == 0 {
		return nil
	}
	users, err := l.users.List(ctx)
	if err != nil {
		return err
	}
	pool := make([]model.Donor, 0, len(users))
	byID := make(map[string]*model.User, len(users))
	now := time.Now().UTC()
	for i := range users {
		byID[users[i].ID] = &users[i]
		d := users[i].ToDonor()
		model.NormalizeDonor(&d, now)
		pool = append(pool, d)
	}

	for _, uid := range connected {
		var loc *geo.Coordinates
		if cached, err := l.kv.GetLastLocation(ctx, uid); err == nil && cached != nil {
			loc = cached
		} else if u, ok := byID[uid]; ok && u.Location != nil {
			loc = u.Location
		}
		ranked := donor.Rank(pool, uid, loc)
		l.hub.SendToUser(uid, ws.OutgoingMessage{
			Type:    ws.EventDonors,
			Payload: ws.DonorsPayload{Donors: ranked},
		})
	}
	return nil
}

func (l *liveUpdater) broadcastChats(ctx context.Context) error {
	for _, uid := range l.hub.ConnectedUserIDs() {
		chats, err := l.chatSvc.ListForUser(ctx, uid)
		if err != nil {
			logger.Errorf("live chats user=%s: %v", uid, err)
			continue
		}
		l.hub.SendToUser(uid, ws.OutgoingMessage{
			Type:    ws.EventChatList,
			Payload: ws.ChatListPayload{Chats: chats},
		})
	}
	return nil
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		logger.Errorf("list migrations: %v", err)
		os.Exit(1)
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			logger.Errorf("read migration %s: %v", name, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", name, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "bloodlink"
		password = "bloodlink_secret"
		database = "bloodlink"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
