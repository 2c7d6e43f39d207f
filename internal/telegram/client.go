package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kara-analytics/telelake/internal/scrape"
	"github.com/kara-analytics/telelake/internal/slugify"
)

// DefaultBaseURL is Telegram's public web preview host.
const DefaultBaseURL = "https://t.me"

const userAgent = "telelake/1.0 (+https://github.com/kara-analytics/telelake)"

// Client scrapes public channel history from Telegram's web preview pages
// (t.me/s/<handle>). It implements scrape.ChannelClient. Only channels with
// a public preview are accessible; private or invalid channels resolve to
// scrape.ErrChannelNotFound.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a preview client. Empty baseURL uses t.me; zero timeout
// defaults to 15s. Network-level timeouts live here, not in the fetcher.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Resolve probes the channel's preview page. The returned entity is the
// bare handle used for subsequent history pages.
func (c *Client) Resolve(ctx context.Context, identity string) (string, error) {
	handle := slugify.Handle(identity)
	if handle == "" {
		return "", scrape.ErrChannelNotFound
	}

	doc, err := c.getPreview(ctx, handle, 0)
	if err != nil {
		return "", err
	}
	// A real channel preview always carries the channel info header, even
	// when the history container happens to be empty.
	if doc.Find(".tgme_channel_info").Length() == 0 && doc.Find(".tgme_widget_message").Length() == 0 {
		return "", fmt.Errorf("%s: %w", identity, scrape.ErrChannelNotFound)
	}
	return handle, nil
}

// HistoryPage fetches messages strictly older than offsetID, newest first.
// Telegram's preview serves a fixed page of ~20 messages; pageSize only
// caps the result and cannot grow it.
func (c *Client) HistoryPage(ctx context.Context, entity string, offsetID int64, pageSize int) ([]scrape.Record, error) {
	doc, err := c.getPreview(ctx, entity, offsetID)
	if err != nil {
		return nil, err
	}
	records, err := parsePreview(doc, entity)
	if err != nil {
		return nil, err
	}
	if pageSize > 0 && len(records) > pageSize {
		// Keep the newest pageSize messages; the cursor still advances.
		records = records[:pageSize]
	}
	return records, nil
}

func (c *Client) getPreview(ctx context.Context, handle string, before int64) (*goquery.Document, error) {
	url := fmt.Sprintf("%s/s/%s", c.baseURL, handle)
	if before > 0 {
		url += fmt.Sprintf("?before=%d", before)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", handle, scrape.ErrChannelNotFound)
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing preview page: %w", err)
	}
	return doc, nil
}

// message is the raw document persisted per scraped message. The loader
// downstream keys on id and date; everything else is carried verbatim for
// reprocessing.
type message struct {
	ID       int64  `json:"id"`
	Channel  string `json:"channel"`
	Date     string `json:"date"`
	Message  string `json:"message,omitempty"`
	HasPhoto bool   `json:"has_photo,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	Views    string `json:"views,omitempty"`
}

// parsePreview extracts messages from a preview document, newest first.
// Preview pages render oldest-to-newest, so the order is reversed here.
func parsePreview(doc *goquery.Document, handle string) ([]scrape.Record, error) {
	var records []scrape.Record
	var parseErr error

	doc.Find(".tgme_widget_message").Each(func(_ int, sel *goquery.Selection) {
		post, ok := sel.Attr("data-post")
		if !ok {
			return
		}
		idStr := post
		if i := strings.LastIndex(post, "/"); i >= 0 {
			idStr = post[i+1:]
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			parseErr = fmt.Errorf("unparseable post id %q: %w", post, err)
			return
		}

		m := message{
			ID:      id,
			Channel: handle,
			Message: strings.TrimSpace(sel.Find(".tgme_widget_message_text").First().Text()),
			Views:   strings.TrimSpace(sel.Find(".tgme_widget_message_views").First().Text()),
		}
		if dt, ok := sel.Find(".tgme_widget_message_date time").First().Attr("datetime"); ok {
			m.Date = dt
		}
		if photo := sel.Find(".tgme_widget_message_photo_wrap").First(); photo.Length() > 0 {
			m.HasPhoto = true
			if style, ok := photo.Attr("style"); ok {
				m.PhotoURL = extractBackgroundURL(style)
			}
		}

		raw, err := json.Marshal(m)
		if err != nil {
			parseErr = fmt.Errorf("serializing message %d: %w", id, err)
			return
		}
		records = append(records, scrape.Record{ID: id, Raw: raw})
	})

	if parseErr != nil {
		return nil, parseErr
	}

	// Newest first, matching the fetcher's cursor contract.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func extractBackgroundURL(style string) string {
	const marker = "background-image:url('"
	i := strings.Index(style, marker)
	if i < 0 {
		return ""
	}
	rest := style[i+len(marker):]
	if j := strings.Index(rest, "')"); j >= 0 {
		return rest[:j]
	}
	return ""
}
