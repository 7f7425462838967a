// Package jobfeed fetches job posting pages so their text can be run through
// skill extraction.
package jobfeed

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

var ErrEmptyPage = errors.New("job page has no readable text")

// PageFetcher downloads one posting and returns the text under BodySelector.
type PageFetcher struct {
	BodySelector string
	UserAgent    string
	Timeout      time.Duration
	MaxBodySize  int
}

func NewPageFetcher() *PageFetcher {
	return &PageFetcher{
		BodySelector: "body",
		UserAgent:    "CVAlignFetcher/0.1",
		Timeout:      15 * time.Second,
		MaxBodySize:  2 << 20,
	}
}

func (f *PageFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.New("invalid job url")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.AllowedDomains(hostOnly(u.Host)),
		colly.StdlibContext(ctx),
		colly.MaxBodySize(f.MaxBodySize),
		colly.UserAgent(f.UserAgent),
	)
	c.SetRequestTimeout(f.Timeout)
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2})

	var (
		parts  []string
		reqErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	c.OnHTML(f.selector(), func(e *colly.HTMLElement) {
		e.DOM.Find("script,style,noscript,svg").Remove()
		if t := strings.Join(strings.Fields(e.DOM.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})

	c.OnError(func(_ *colly.Response, err error) {
		reqErr = err
	})

	if err := c.Visit(u.String()); err != nil {
		return "", err
	}
	c.Wait()
	if reqErr != nil {
		return "", reqErr
	}
	if len(parts) == 0 {
		return "", ErrEmptyPage
	}
	return strings.Join(parts, "\n"), nil
}

func (f *PageFetcher) selector() string {
	if s := strings.TrimSpace(f.BodySelector); s != "" {
		return s
	}
	return "body"
}

func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
