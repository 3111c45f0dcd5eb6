package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/jgivc/tracksearch/internal/adapter/browser"
	"github.com/jgivc/tracksearch/internal/adapter/parser"
	"github.com/jgivc/tracksearch/internal/adapter/profile"
	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/config"
	"github.com/jgivc/tracksearch/internal/entity"
	httphandler "github.com/jgivc/tracksearch/internal/handler/http"
	"github.com/jgivc/tracksearch/internal/repository/cache"
	sessionrepo "github.com/jgivc/tracksearch/internal/repository/session"
	"github.com/jgivc/tracksearch/internal/service/discography"
	"github.com/jgivc/tracksearch/internal/service/search"
	sessionsrv "github.com/jgivc/tracksearch/internal/service/session"
)

const (
	shutdownTimeout = 5 * time.Second

	envUsername = "TRACKSEARCH_USERNAME"
	envPassword = "TRACKSEARCH_PASSWORD"
)

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	gw      browser.Gateway
	session *sessionsrv.SessionService
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	prof, err := profile.Load(afero.NewOsFs(), a.cfg.ProfileFile, log)
	if err != nil {
		panic(err)
	}

	a.gw, err = browser.New(&a.cfg.Browser, prof.BaseURL, log)
	if err != nil {
		if errors.Is(err, common.ErrBrowserNotFound) {
			log.Error("No browser executable found, set browser.executable in the config")
		}
		panic(err)
	}

	repo := sessionrepo.NewSessionRepository(a.cfg.Session.File, log)
	a.session = sessionsrv.NewSessionService(a.gw, prof, repo, &a.cfg.Session, log)

	p := parser.NewParser(prof, log)

	// The redis cache is optional; without it every page is fetched live.
	var pageCache search.PageCache
	var flusher httphandler.CacheFlusher
	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			panic(err)
		}

		c := cache.NewSearchCache(rdb, a.cfg.Search.CacheTTL(), log)
		pageCache = c
		flusher = c
	}

	searchSrv := search.NewSearchService(a.gw, prof, p, a.session, pageCache, &a.cfg.Search, log)
	scanSrv := discography.NewScanService(a.gw, a.session, log)

	http.Handle("POST /login/{$}", httphandler.NewLoginHandler(a.session, log))
	http.Handle("POST /logout/{$}", httphandler.NewLogoutHandler(a.session, log))
	http.Handle("GET /status/{$}", httphandler.NewStatusHandler(a.session, log))
	http.Handle("GET /search/{$}", httphandler.NewSearchHandler(searchSrv, log))
	http.Handle("POST /discography/scan/{$}", httphandler.NewScanHandler(scanSrv, log))
	http.Handle("GET /profile/{$}", httphandler.NewProfileHandler(prof, log))

	if flusher != nil {
		http.Handle("POST /cache/flush/{$}", httphandler.NewCacheFlushHandler(flusher, log))
	}

	a.srv = &http.Server{
		Addr: a.cfg.Listen,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()

	a.autoLogin()
}

// autoLogin signs in with environment credentials when no restored
// session is usable.
func (a *App) autoLogin() {
	username := os.Getenv(envUsername)
	password := os.Getenv(envPassword)
	if username == "" || password == "" {
		return
	}

	if a.session.Status().LoggedIn {
		return
	}

	go func() {
		res := a.session.Login(context.Background(), entity.Credentials{
			Username: username,
			Password: password,
		})
		if !res.Success {
			a.log.Warn("Automatic login failed", slog.String("reason", string(res.Reason)))
		}
	}()
}

// Revalidate triggers one session liveness check outside the normal
// schedule (SIGUSR1 lands here).
func (a *App) Revalidate() {
	if a.session == nil {
		return
	}

	a.session.Revalidate(context.Background())
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.session != nil {
		a.session.Close()
	}
	if a.gw != nil {
		a.gw.Close()
	}
	if a.srv != nil {
		a.srv.Shutdown(ctx)
	}
}
