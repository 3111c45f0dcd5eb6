package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/config"
	"github.com/jgivc/tracksearch/internal/entity"
)

// Page is one browser tab. Navigation waits for DOM readiness, not network
// idle; callers that need a specific element use NavigateAndWait and never
// re-check readiness themselves.
type Page interface {
	Navigate(ctx context.Context, url string) error
	NavigateAndWait(ctx context.Context, url, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	SetCookies(ctx context.Context, cookies []entity.SessionCookie) error
	Cookies(ctx context.Context) ([]entity.SessionCookie, error)
	OuterHTML(ctx context.Context) (string, error)
	Text(ctx context.Context, selector string) (string, error)
	Title(ctx context.Context) (string, error)
	HasElement(ctx context.Context, selector string) (bool, error)
	SendKeys(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Close() error
}

// Gateway owns the browser instance and hands out pages. No business logic
// lives here.
type Gateway interface {
	NewPage(ctx context.Context) (Page, error)
	NewPageWithCookies(ctx context.Context, cookies []entity.SessionCookie) (Page, error)
	Close() error
}

type gateway struct {
	cfg     *config.BrowserConfig
	baseURL string

	browserCtx context.Context
	cancels    []context.CancelFunc

	log *slog.Logger
}

// New discovers a browser executable, launches it and returns the gateway.
// A missing executable is the one unrecoverable error in the subsystem.
func New(cfg *config.BrowserConfig, baseURL string, log *slog.Logger) (Gateway, error) {
	exePath := cfg.Executable
	if exePath == "" {
		var err error
		if exePath, err = Discover(); err != nil {
			return nil, err
		}
	}

	log = log.With(slog.String("item", "BrowserGateway"))
	log.Info("Launch browser", slog.String("executable", exePath), slog.Bool("headless", cfg.Headless))

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.ExecPath(exePath),
		chromedp.Flag("headless", cfg.Headless),
	)
	for _, arg := range cfg.LaunchArgs {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	// Materialize the browser process now so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()

		return nil, fmt.Errorf("cannot launch browser: %w", err)
	}

	return &gateway{
		cfg:        cfg,
		baseURL:    baseURL,
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{browserCancel, allocCancel},
		log:        log,
	}, nil
}

func (g *gateway) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(g.browserCtx)

	// An empty task list creates the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()

		return nil, fmt.Errorf("cannot open page: %w", err)
	}

	return &page{
		ctx:        tabCtx,
		cancel:     cancel,
		navTimeout: g.cfg.NavTimeout(),
		selTimeout: g.cfg.SelectorTimeout(),
	}, nil
}

// NewPageWithCookies opens a page, navigates to the site root to establish
// a first-party context and only then injects the cookies.
func (g *gateway) NewPageWithCookies(ctx context.Context, cookies []entity.SessionCookie) (Page, error) {
	p, err := g.NewPage(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.Navigate(ctx, g.baseURL); err != nil {
		p.Close()

		return nil, fmt.Errorf("cannot open site root: %w", err)
	}

	if err := p.SetCookies(ctx, cookies); err != nil {
		p.Close()

		return nil, fmt.Errorf("cannot inject cookies: %w", err)
	}

	return p, nil
}

func (g *gateway) Close() error {
	for _, cancel := range g.cancels {
		cancel()
	}

	return nil
}

// Discover walks the usual install locations for the current OS and falls
// back to a PATH lookup.
func Discover() (string, error) {
	var candidates []string

	switch runtime.GOOS {
	case "windows":
		candidates = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chrome.exe`,
		}
	case "darwin":
		candidates = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	default:
		candidates = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}

	for _, path := range candidates {
		if _, err := exec.LookPath(path); err == nil {
			return path, nil
		}
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", common.ErrBrowserNotFound
}
