package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	gormsessions "github.com/gin-contrib/sessions/gorm"
	"github.com/gin-gonic/autotls"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gallery/auth"
	"gallery/cache"
	"gallery/config"
	"gallery/db"
	"gallery/engine"
	"gallery/handlers"
	"gallery/models"
	"gallery/remote"
	"gallery/runner"
	"gallery/store"
)

const (
	sessionCookieName     = "token"
	sessionExpirationTime = 365 * 86400 // 1 year
	shutdownGrace         = 30 * time.Second
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if config.DEBUG_MODE {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db.Init()
	models.Init()

	st := store.New(db.Instance, db.IsSQLite)
	pageCache := cache.New(config.REDIS_ADDR)
	defer pageCache.Close()

	remoteClient, err := remote.New(st.RemoteCredentials())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid remote media store configuration")
	}
	defer remoteClient.Close()

	taskRunner := runner.New(config.UPLOAD_WORKERS, config.TASK_QUEUE_SIZE)
	eng := engine.New(st, remoteClient, pageCache)

	authService := &auth.Auth{Store: st}
	api := &handlers.API{
		Store:  st,
		Engine: eng,
		Remote: remoteClient,
		Runner: taskRunner,
		Cache:  pageCache,
		Auth:   authService,
	}

	if !config.DEBUG_MODE {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{})
	router.MaxMultipartMemory = int64(config.MAX_UPLOAD_MB) << 20
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           30 * 24 * time.Hour,
	}))

	sessionKey := config.SESSION_KEY
	if sessionKey == "" {
		if !config.DEBUG_MODE {
			log.Fatal().Msg("SESSION_KEY is required outside debug mode")
		}
		sessionKey = "debug-only-session-key"
	}
	cookieStore := gormsessions.NewStore(db.Instance, true, []byte(sessionKey))
	cookieStore.Options(sessions.Options{MaxAge: sessionExpirationTime, Path: "/", HttpOnly: true})
	router.Use(sessions.Sessions(sessionCookieName, cookieStore))
	if !config.DEBUG_MODE {
		router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/media/proxy"})))
	}

	// Public routes
	router.GET("/health", api.Health)
	router.POST("/user/login", api.UserLogin)
	router.POST("/user/register", api.UserRegister)
	router.GET("/user/status", api.UserStatus)
	router.GET("/asset/list", api.AssetList)
	router.GET("/album/list", api.AlbumList)
	router.GET("/album/:id", api.AlbumGet)
	router.GET("/media/proxy", api.MediaProxy)

	// Authenticated routes
	authRouter := &auth.Router{Base: router, Auth: authService}
	authRouter.POST("/user/logout", api.UserLogout)
	authRouter.POST("/asset/upload", api.AssetUpload)
	authRouter.POST("/asset/delete", api.AssetDelete)
	authRouter.POST("/asset/move", api.AssetMove)
	authRouter.PATCH("/asset/:id/visibility", api.AssetVisibility)
	authRouter.POST("/asset/:id/repair", api.AssetRepair)
	authRouter.POST("/album/create", api.AlbumCreate)
	authRouter.POST("/album/:id/save", api.AlbumSave)
	authRouter.PATCH("/album/:id/parent", api.AlbumReparent)
	authRouter.DELETE("/album/:id", api.AlbumDelete)
	authRouter.GET("/token/list", api.TokenList)
	authRouter.POST("/token/create", api.TokenCreate)
	authRouter.DELETE("/token/:id", api.TokenRevoke)

	// Admin routes
	authRouter.GET("/user/list", api.UserList, models.RoleAdmin)
	authRouter.POST("/user/create", api.UserCreate, models.RoleAdmin)
	authRouter.POST("/user/:id/deactivate", api.UserDeactivate, models.RoleAdmin)
	authRouter.POST("/tenant/create", api.TenantCreate, models.RoleAdmin)
	authRouter.GET("/settings", api.SettingsGet, models.RoleAdmin)
	authRouter.PATCH("/settings", api.SettingsSave, models.RoleAdmin)

	if config.TLS_DOMAINS != "" {
		err := autotls.Run(router, strings.Split(config.TLS_DOMAINS, ",")...)
		log.Fatal().Err(err).Msg("Server stopped")
		return
	}

	server := &http.Server{Addr: config.BIND_ADDRESS, Handler: router}
	go func() {
		log.Info().Str("addr", config.BIND_ADDRESS).Msg("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	// Let in-flight sagas settle so no remote commit is left without its
	// local row.
	if err := taskRunner.Shutdown(shutdownGrace); err != nil {
		log.Warn().Err(err).Msg("Task runner drained incompletely")
	}
}
