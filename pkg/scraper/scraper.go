package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/huskychat/huskychat/internal/models"
)

type Config struct {
	BaseURL           string
	MaxDepth          int
	MaxPages          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// Scraper crawls university pages breadth-limited by depth and page count,
// same-host only, rate limited.
type Scraper struct {
	config   Config
	client   *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
	visited  map[string]bool
	baseHost string
}

func New(config Config, logger zerolog.Logger) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.MaxPages == 0 {
		config.MaxPages = 500
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}

	return &Scraper{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:   logger,
		visited:  make(map[string]bool),
		baseHost: parsedURL.Host,
	}, nil
}

// Scrape crawls from the start URL and returns every page it could fetch.
// Individual page failures are logged and skipped; only a dead start URL
// fails the crawl.
func (s *Scraper) Scrape(ctx context.Context, startURL string) ([]models.Document, error) {
	var documents []models.Document
	if err := s.crawl(ctx, startURL, 0, &documents); err != nil {
		return nil, err
	}
	return documents, nil
}

func (s *Scraper) crawl(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > s.config.MaxDepth || len(*documents) >= s.config.MaxPages {
		return nil
	}
	if s.visited[urlStr] || !s.shouldProcessURL(urlStr) {
		return nil
	}
	s.visited[urlStr] = true

	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	doc, contentType, err := s.fetch(ctx, urlStr)
	if err != nil {
		if depth == 0 {
			return err
		}
		s.logger.Warn().Err(err).Str("url", urlStr).Msg("skipping page")
		return nil
	}

	title := strings.TrimSpace(doc.Find("title").Text())
	content := s.extractMainContent(doc)

	*documents = append(*documents, models.Document{
		ID:      documentID(urlStr),
		URL:     urlStr,
		Title:   title,
		Content: content,
		Metadata: map[string]interface{}{
			"title":        title,
			"url":          urlStr,
			"depth":        depth,
			"content_type": contentType,
			"scraped_at":   time.Now().UTC().Format(time.RFC3339),
		},
	})

	for _, link := range s.extractLinks(doc, urlStr) {
		if err := s.crawl(ctx, link, depth+1, documents); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scraper) fetch(ctx context.Context, urlStr string) (*goquery.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d for %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return doc, resp.Header.Get("Content-Type"), nil
}

func (s *Scraper) extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, ok := selection.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})
	return links
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsedURL.Host != s.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, ext := range s.config.AllowedExtensions {
		if strings.HasSuffix(path, ext) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}
	return true
}

func (s *Scraper) extractMainContent(doc *goquery.Document) string {
	selectors := []string{"main", "article", ".content", "#content", ".main-content"}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}
	return cleanContent(content)
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Skip to content",
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}

// documentID is stable across crawls so re-ingesting a page overwrites its
// previous chunks instead of duplicating them.
func documentID(urlStr string) string {
	sum := sha256.Sum256([]byte(urlStr))
	return hex.EncodeToString(sum[:16])
}
