// Package feed pulls RSS 2.0 and Atom feeds and normalizes their entries
// into events for the inbox.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Item is one feed entry before normalization.
type Item struct {
	Title     string
	Link      string
	Summary   string
	Published string
	Source    string
}

type document struct {
	XMLName xml.Name
	Channel *rssChannel `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
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

type atomEntry struct {
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Updated   string     `xml:"updated"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// Parse decodes an RSS or Atom document. baseURL supplies the source host.
// Unknown root elements yield no items.
func Parse(data []byte, baseURL string) ([]Item, error) {
	var doc document
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	host := hostOf(baseURL)
	var items []Item

	switch {
	case doc.Channel != nil:
		for _, it := range doc.Channel.Items {
			items = append(items, Item{
				Title:     StripHTML(it.Title),
				Link:      strings.TrimSpace(it.Link),
				Summary:   StripHTML(it.Description),
				Published: strings.TrimSpace(it.PubDate),
				Source:    host,
			})
		}
	case doc.XMLName.Local == "feed":
		for _, e := range doc.Entries {
			items = append(items, Item{
				Title:     StripHTML(e.Title),
				Link:      atomHref(e.Links),
				Summary:   StripHTML(firstNonBlank(e.Summary, e.Content)),
				Published: strings.TrimSpace(firstNonBlank(e.Updated, e.Published)),
				Source:    host,
			})
		}
	}
	return items, nil
}

// StripHTML drops markup and collapses whitespace.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		default:
			b.WriteByte(' ')
		}
	}
}

// atomHref prefers the alternate link, then any link with an href.
func atomHref(links []atomLink) string {
	for _, l := range links {
		if href := strings.TrimSpace(l.Href); href != "" && (l.Rel == "" || l.Rel == "alternate") {
			return href
		}
	}
	for _, l := range links {
		if href := strings.TrimSpace(l.Href); href != "" {
			return href
		}
	}
	return ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
