package feeds

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/annexlab/cleanroom/internal/htmltext"
)

// ErrUnknownFormat is returned for documents that are neither RSS nor Atom.
var ErrUnknownFormat = errors.New("not an RSS or Atom document")

type rssDoc struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	// RSS 1.0 places items beside the channel.
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Link        string `xml:"link"`
}

type atomDoc struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     atomText   `xml:"title"`
	Summary   atomText   `xml:"summary"`
	Content   atomText   `xml:"content"`
	Updated   string     `xml:"updated"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

type atomText struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// Parse decodes an RSS 2.0 or Atom document into normalised items, at most
// MaxPerFeed of them. now stands in for missing or unparseable dates.
func Parse(data []byte, category, source string, now time.Time) ([]Item, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}

	var items []Item
	switch root {
	case "rss", "RDF":
		var doc rssDoc
		if err := decode(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding rss: %w", err)
		}
		for _, it := range append(doc.Channel.Items, doc.Items...) {
			items = append(items, normalise(category, source, it.Title, it.Description, it.Link, parseDate(it.PubDate, now)))
		}
	case "feed":
		var doc atomDoc
		if err := decode(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding atom: %w", err)
		}
		for _, e := range doc.Entries {
			summary := e.Summary.Body
			if strings.TrimSpace(summary) == "" {
				summary = e.Content.Body
			}
			date := e.Updated
			if date == "" {
				date = e.Published
			}
			items = append(items, normalise(category, source, e.Title.Body, summary, e.link(), parseDate(date, now)))
		}
	default:
		return nil, fmt.Errorf("%w: root element <%s>", ErrUnknownFormat, root)
	}

	if len(items) > MaxPerFeed {
		items = items[:MaxPerFeed]
	}
	return items, nil
}

func newDecoder(data []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel
	return d
}

func decode(data []byte, v any) error {
	return newDecoder(data).Decode(v)
}

func rootElement(data []byte) (string, error) {
	d := newDecoder(data)
	for {
		tok, err := d.Token()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownFormat, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

func normalise(category, source, title, summary, link string, date time.Time) Item {
	title = htmltext.Text(title)
	if title == "" {
		title = defaultTitle
	}
	summary = htmltext.Truncate(htmltext.Text(summary), MaxSummary)
	if summary == "" {
		summary = defaultSummary
	}
	link = strings.TrimSpace(link)
	return Item{
		ID:       itemID(category, link, title, date),
		Title:    title,
		Summary:  summary,
		Date:     date,
		Link:     link,
		Category: category,
		Source:   source,
	}
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04 -0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}
