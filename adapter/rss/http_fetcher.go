package rss

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"gator/domain"
)

const (
	DefaultUserAgent = "gator"
	maxBodyBytes     = 10 << 20
)

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) (domain.FetchedFeed, error) {
	body, err := f.get(ctx, feedURL)
	if err != nil {
		return domain.FetchedFeed{}, err
	}
	return Parse(body)
}

func (f *HTTPFetcher) get(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %s", domain.ErrFetchFailed, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFetchFailed, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrFetchFailed, maxBodyBytes)
	}
	return body, nil
}

// Parse decodes an RSS 2.0 document. The channel must carry title, link and
// description; items lacking any of title, link, description or pubDate are dropped.
func Parse(data []byte) (domain.FetchedFeed, error) {
	var doc rssDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return domain.FetchedFeed{}, fmt.Errorf("%w: %v", domain.ErrInvalidFeedFormat, err)
	}
	if doc.XMLName.Local != "rss" || doc.Channel == nil {
		return domain.FetchedFeed{}, fmt.Errorf("%w: missing channel element", domain.ErrInvalidFeedFormat)
	}

	ch := doc.Channel
	channel := domain.FetchedChannel{
		Title:       plainText(ch.Titles),
		Link:        plainText(ch.Links),
		Description: plainText(ch.Descriptions),
	}
	if channel.Title == "" || channel.Link == "" || channel.Description == "" {
		return domain.FetchedFeed{}, fmt.Errorf("%w: missing required channel metadata", domain.ErrInvalidFeedFormat)
	}

	items := make([]domain.FetchedItem, 0, len(ch.Items))
	for _, it := range ch.Items {
		item := domain.FetchedItem{
			Title:       plainText(it.Titles),
			Link:        plainText(it.Links),
			Description: plainText(it.Descriptions),
			PubDate:     strings.TrimSpace(it.PubDate),
		}
		if item.Title == "" || item.Link == "" || item.Description == "" || item.PubDate == "" {
			continue
		}
		items = append(items, item)
	}
	return domain.FetchedFeed{Channel: channel, Items: items}, nil
}

// plainText returns the first non-empty text of an element without a namespace, so
// extensions such as atom:link, itunes:title or media:description never shadow it.
func plainText(elems []rssText) string {
	for _, e := range elems {
		if e.XMLName.Space != "" {
			continue
		}
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

type rssDocument struct {
	XMLName xml.Name
	Channel *rssChannel `xml:"channel"`
}

type rssChannel struct {
	Titles       []rssText `xml:"title"`
	Links        []rssText `xml:"link"`
	Descriptions []rssText `xml:"description"`
	Items        []rssItem `xml:"item"`
}

type rssItem struct {
	Titles       []rssText `xml:"title"`
	Links        []rssText `xml:"link"`
	Descriptions []rssText `xml:"description"`
	PubDate      string    `xml:"pubDate"`
}

type rssText struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}
