package collectors

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"P3Recon/internal/domain"
)

// article is one entry of the news-search feed's JSON article list.
type article struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	SeenDate string `json:"seendate"`
}

type articleList struct {
	Articles []article `json:"articles"`
}

const seenDateLayout = "20060102T150405Z"

// buildSearchURL composes a news-search request for the given query terms.
func buildSearchURL(base, query string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}

	values := parsed.Query()
	values.Set("query", query)
	values.Set("mode", "artlist")
	values.Set("format", "json")
	values.Set("maxrecords", "50")
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}

// parseArticles decodes the feed payload, dropping entries without a URL so
// every evidence item stays dereferenceable.
func parseArticles(raw []byte) ([]article, error) {
	var list articleList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode article list: %w", err)
	}

	out := make([]article, 0, len(list.Articles))
	for _, a := range list.Articles {
		if strings.TrimSpace(a.URL) == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (a article) publishedAt() time.Time {
	parsed, err := time.Parse(seenDateLayout, a.SeenDate)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// searchTerms picks the best identifier for a parcel: its site name when the
// dataset carries one, otherwise the street address.
func searchTerms(parcel domain.Parcel) string {
	if parcel.Name != "" {
		return fmt.Sprintf("%q", parcel.Name)
	}
	return fmt.Sprintf("%q", parcel.Address)
}

// withinLookback keeps items newer than the cutoff. Items without a parse-
// able date are kept: the feed vouched for them and dropping evidence on a
// date glitch would understate the signal.
func withinLookback(items []article, cutoff time.Time) []article {
	kept := make([]article, 0, len(items))
	for _, item := range items {
		published := item.publishedAt()
		if published.IsZero() || published.After(cutoff) {
			kept = append(kept, item)
		}
	}
	return kept
}
