package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/jgivc/tracksearch/internal/entity"
)

type page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
	selTimeout time.Duration
}

// run executes actions on the tab bounded by both the caller context and
// the given timeout.
func (p *page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	return runBounded(ctx, p.ctx, timeout, func(tabCtx context.Context) error {
		return chromedp.Run(tabCtx, actions...)
	})
}

// runBounded runs fn with a context derived from the tab context that is
// cancelled by the timeout or by the caller context, whichever fires
// first. fn itself observes the cancellation, so no action keeps driving
// a reused tab after its caller has given up.
func runBounded(ctx, tab context.Context, timeout time.Duration, fn func(context.Context) error) error {
	tabCtx, cancel := context.WithCancel(tab)
	defer cancel()

	if timeout > 0 {
		tabCtx, cancel = context.WithTimeout(tabCtx, timeout)
		defer cancel()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := fn(tabCtx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

func (p *page) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, p.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("cannot navigate to %s: %w", url, err)
	}

	return nil
}

func (p *page) NavigateAndWait(ctx context.Context, url, selector string) error {
	if err := p.Navigate(ctx, url); err != nil {
		return err
	}

	return p.WaitVisible(ctx, selector, p.selTimeout)
}

func (p *page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("cannot find %q: %w", selector, err)
	}

	return nil
}

func (p *page) SetCookies(ctx context.Context, cookies []entity.SessionCookie) error {
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			sc := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path)
			if !c.Expires.IsZero() {
				expires := cdp.TimeSinceEpoch(c.Expires)
				sc = sc.WithExpires(&expires)
			}
			if err := sc.Do(ctx); err != nil {
				return fmt.Errorf("cannot set cookie %s: %w", c.Name, err)
			}
		}

		return nil
	})

	return p.run(ctx, p.selTimeout, action)
}

func (p *page) Cookies(ctx context.Context) ([]entity.SessionCookie, error) {
	var cookies []entity.SessionCookie

	action := chromedp.ActionFunc(func(ctx context.Context) error {
		cs, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}

		for _, c := range cs {
			cookie := entity.SessionCookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			}
			if c.Expires > 0 {
				cookie.Expires = time.Unix(int64(c.Expires), 0)
			}
			cookies = append(cookies, cookie)
		}

		return nil
	})

	if err := p.run(ctx, p.selTimeout, action); err != nil {
		return nil, fmt.Errorf("cannot read cookies: %w", err)
	}

	return cookies, nil
}

func (p *page) OuterHTML(ctx context.Context) (string, error) {
	var src string
	if err := p.run(ctx, p.selTimeout, chromedp.OuterHTML("html", &src, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("cannot get page html: %w", err)
	}

	return src, nil
}

func (p *page) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, p.selTimeout, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("cannot get text of %q: %w", selector, err)
	}

	return text, nil
}

func (p *page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, p.selTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("cannot get page title: %w", err)
	}

	return title, nil
}

func (p *page) HasElement(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := p.run(ctx, p.selTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return false, fmt.Errorf("cannot check %q: %w", selector, err)
	}

	return found, nil
}

func (p *page) SendKeys(ctx context.Context, selector, value string) error {
	err := p.run(ctx, p.selTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("cannot fill %q: %w", selector, err)
	}

	return nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, p.selTimeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("cannot click %q: %w", selector, err)
	}

	return nil
}

func (p *page) Close() error {
	p.cancel()

	return nil
}
