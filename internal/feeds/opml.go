package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"gleaner/internal/logging"
	"gleaner/internal/store"
)

// OPML is the common interchange format for feed subscriptions; import and
// export keep the category in the outline's category attribute so a round
// trip preserves it.

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr,omitempty"`
	Type     string        `xml:"type,attr,omitempty"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	Category string        `xml:"category,attr,omitempty"`
	Outlines []opmlOutline `xml:"outline,omitempty"`
}

// ExportOPML writes the active subscriptions as an OPML 2.0 document.
func (m *Manager) ExportOPML(ctx context.Context, w io.Writer) error {
	subscriptions, err := m.store.ListFeeds(ctx, "")
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	doc := opmlDocument{
		Version: "2.0",
		Head: opmlHead{
			Title:       "Gleaner subscriptions",
			DateCreated: time.Now().UTC().Format(time.RFC1123Z),
		},
	}
	for _, feed := range subscriptions {
		doc.Body.Outlines = append(doc.Body.Outlines, opmlOutline{
			Text:     feed.Title,
			Title:    feed.Title,
			Type:     "rss",
			XMLURL:   feed.URL,
			Category: string(feed.Category),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode opml: %w", err)
	}
	return nil
}

// ImportOPML subscribes to every outline carrying an xmlUrl, walking nested
// outlines. Outlines with an unknown category attribute fall back to URL
// detection. Returns the number of feeds added; individual failures are
// logged and skipped.
func (m *Manager) ImportOPML(ctx context.Context, r io.Reader) (int, error) {
	var doc opmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("parse opml: %w", err)
	}

	added := 0
	var walk func(outlines []opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, outline := range outlines {
			if feedURL := strings.TrimSpace(outline.XMLURL); feedURL != "" {
				category, err := store.ParseCategory(outline.Category)
				if err != nil {
					category = DetectCategory(feedURL)
				}
				title := strings.TrimSpace(outline.Title)
				if title == "" {
					title = strings.TrimSpace(outline.Text)
				}
				if title == "" {
					title = feedURL
				}
				if _, err := m.store.AddFeed(ctx, feedURL, title, category); err != nil {
					m.logger.Warn("opml import skipped feed",
						logging.String("url", feedURL),
						logging.Error(err),
					)
					continue
				}
				added++
			}
			walk(outline.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return added, nil
}
