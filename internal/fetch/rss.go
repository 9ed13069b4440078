// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/litpipe/internal/store"
	"github.com/pdiddy/litpipe/pkg/types"
)

// defaultFeeds maps topic categories to RSS feeds. A query keyword that
// matches a category selects its feeds; the general feed is always
// included as a catch-all.
var defaultFeeds = map[string][]string{
	"technology": {"https://techcrunch.com/feed/", "https://www.theverge.com/rss/index.xml"},
	"science":    {"https://www.sciencedaily.com/rss/top.xml"},
	"health":     {"https://www.healthline.com/rss/health"},
	"business":   {"https://www.forbes.com/business/feed/"},
	"education":  {"https://www.edutopia.org/blog/feed"},
}

var generalFeed = "https://medium.com/feed"

// RSSSource reads topic-matched RSS feeds and turns matching entries
// into records. Feed fetches are throttled by a fixed-interval limiter
// as a politeness mechanism, not a performance optimization.
type RSSSource struct {
	Client *http.Client
	Cfg    types.FetchConfig
	Log    zerolog.Logger

	// Feeds overrides defaultFeeds when non-nil (used by tests).
	Feeds map[string][]string

	// General overrides the catch-all feed when non-empty.
	General string

	// FeedDelay is the minimum interval between feed fetches
	// (default 1s).
	FeedDelay time.Duration
}

// Name returns the source identifier.
func (s *RSSSource) Name() string { return "rss" }

// Fetch selects feeds whose category matches a query keyword, reads
// them, filters entries by keyword, persists the records under
// data/<project>/rss/metadata.json, and returns them.
func (s *RSSSource) Fetch(ctx context.Context, query, project string) ([]types.Record, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, fmt.Errorf("empty rss query")
	}

	feeds := s.Feeds
	if feeds == nil {
		feeds = defaultFeeds
	}
	general := s.General
	if general == "" {
		general = generalFeed
	}

	selected := selectFeeds(feeds, general, keywords)

	delay := s.FeedDelay
	if delay == 0 {
		delay = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	maxResults := s.Cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	fetchDate := time.Now().UTC().Format(time.RFC3339)
	seen := make(map[string]bool)
	var records []types.Record

	for _, feedURL := range selected {
		if len(records) >= maxResults {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return records, err
		}

		channel, err := s.readFeed(ctx, feedURL)
		if err != nil {
			s.Log.Warn().Str("feed", feedURL).Err(err).Msg("reading feed failed")
			continue
		}

		for _, item := range channel.Items {
			if len(records) >= maxResults {
				break
			}
			if item.Link == "" || seen[item.Link] {
				continue
			}
			if !matchesKeywords(item, keywords) {
				continue
			}
			seen[item.Link] = true

			published := item.PubDate
			if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
				published = t.Format(time.RFC3339)
			} else if t, err := time.Parse(time.RFC1123, item.PubDate); err == nil {
				published = t.Format(time.RFC3339)
			}
			if published == "" {
				published = "Unknown"
			}

			records = append(records, types.Record{
				ID:        linkHashID(item.Link),
				Title:     strings.TrimSpace(item.Title),
				Published: published,
				Summary:   strings.TrimSpace(item.Description),
				Source:    s.Name(),
				Link:      item.Link,
				FetchDate: fetchDate,
			})
		}
	}

	path := store.SourceMetadataPath(s.Cfg.DataDir, project, s.Name())
	if err := store.WriteRecords(path, records); err != nil {
		s.Log.Warn().Err(err).Str("path", path).Msg("persisting rss records failed")
	}
	return records, nil
}

// selectFeeds returns the feeds for every category matched by a keyword,
// with the general feed appended as a fallback.
func selectFeeds(feeds map[string][]string, general string, keywords []string) []string {
	var selected []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		for category, urls := range feeds {
			if !strings.Contains(category, kw) {
				continue
			}
			for _, u := range urls {
				if !seen[u] {
					seen[u] = true
					selected = append(selected, u)
				}
			}
		}
	}
	if !seen[general] {
		selected = append(selected, general)
	}
	return selected
}

func matchesKeywords(item rssItem, keywords []string) bool {
	title := strings.ToLower(item.Title)
	desc := strings.ToLower(item.Description)
	for _, kw := range keywords {
		if strings.Contains(title, kw) || strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

func (s *RSSSource) readFeed(ctx context.Context, feedURL string) (*rssChannel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.Cfg.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	return &doc.Channel, nil
}

// RSS 2.0 XML structures.
type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}
