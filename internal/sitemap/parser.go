// Package sitemap resolves a sitemap URL into the flat list of page URLs
// a job should submit, following nested sitemap indexes.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	maxSitemapBytes = 50 << 20
	maxIndexDepth   = 3
)

type Parser interface {
	ParseURLs(ctx context.Context, sitemapURL string) ([]string, error)
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// HTTPParser fetches and parses XML sitemaps over HTTP. A nested index
// is followed recursively; a broken child sitemap is skipped so one bad
// file does not sink the whole list.
type HTTPParser struct {
	client *http.Client
	log    *zap.Logger
}

func NewHTTPParser(client *http.Client, log *zap.Logger) *HTTPParser {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPParser{client: client, log: log.Named("sitemap")}
}

var _ Parser = (*HTTPParser)(nil)

func (p *HTTPParser) ParseURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	return p.parse(ctx, sitemapURL, 0)
}

func (p *HTTPParser) parse(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > maxIndexDepth {
		return nil, fmt.Errorf("sitemap index nesting exceeds %d levels", maxIndexDepth)
	}

	content, err := p.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var set urlSet
	if err := xml.Unmarshal(content, &set); err == nil {
		urls := make([]string, 0, len(set.URLs))
		for _, entry := range set.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				urls = append(urls, loc)
			}
		}
		return urls, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(content, &index); err != nil {
		return nil, fmt.Errorf("invalid sitemap format at %s", sitemapURL)
	}

	var urls []string
	for _, child := range index.Sitemaps {
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		childURLs, err := p.parse(ctx, loc, depth+1)
		if err != nil {
			p.log.Warn("skipping nested sitemap",
				zap.String("sitemap", loc), zap.Error(err))
			continue
		}
		urls = append(urls, childURLs...)
	}

	return urls, nil
}

func (p *HTTPParser) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap %s: %s", sitemapURL, resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap %s: %w", sitemapURL, err)
	}
	return content, nil
}

// Validate reports whether the sitemap can be fetched and parsed.
func (p *HTTPParser) Validate(ctx context.Context, sitemapURL string) bool {
	_, err := p.ParseURLs(ctx, sitemapURL)
	return err == nil
}

// Stats counts the URLs and sitemap files reachable from sitemapURL.
func (p *HTTPParser) Stats(ctx context.Context, sitemapURL string) (totalURLs, sitemaps int, err error) {
	content, err := p.fetch(ctx, sitemapURL)
	if err != nil {
		return 0, 0, err
	}

	var set urlSet
	if err := xml.Unmarshal(content, &set); err == nil {
		return len(set.URLs), 1, nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(content, &index); err != nil {
		return 0, 0, fmt.Errorf("invalid sitemap format at %s", sitemapURL)
	}

	for _, child := range index.Sitemaps {
		childURLs, childMaps, err := p.Stats(ctx, strings.TrimSpace(child.Loc))
		if err != nil {
			continue
		}
		totalURLs += childURLs
		sitemaps += childMaps
	}
	return totalURLs, sitemaps, nil
}
