package content

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jonwraymond/contentops/legacy"
)

// Defaults for fields the legacy API omits.
const (
	DefaultTag      = "General"
	DefaultAuthor   = "Editorial Team"
	DefaultTitle    = "Untitled"
	DefaultIndustry = "General"
)

// Field aliases in lookup order. The legacy API renamed fields over time.
var (
	idKeys          = []string{"_id", "id", "post_id", "uuid"}
	titleKeys       = []string{"title", "headline", "name"}
	slugKeys        = []string{"slug", "permalink", "url_slug"}
	excerptKeys     = []string{"excerpt", "summary", "description", "teaser"}
	bodyKeys        = []string{"body", "content", "html"}
	authorKeys      = []string{"author", "author_name", "byline"}
	dateKeys        = []string{"publishedAt", "published_at", "date", "created_at"}
	categoryKeys    = []string{"category", "section"}
	tagKeys         = []string{"tags", "keywords", "labels"}
	imageKeys       = []string{"coverImage", "cover_image", "image", "thumbnail"}
	clientKeys      = []string{"client", "client_name", "customer", "company"}
	industryKeys    = []string{"industry", "sector", "vertical"}
	resultsKeys     = []string{"results", "outcomes", "highlights"}
	caseSummaryKeys = []string{"summary", "excerpt", "description", "overview"}
)

// NormalizePost converts a legacy record into a Post. Missing fields are
// defaulted: title "Untitled", author "Editorial Team", a slug derived from the
// id (or the title), and tags of [category] or ["General"]. The result always
// has a non-empty ID, Slug and Tags.
func NormalizePost(r legacy.Record) Post {
	p := Post{
		ID:          text(r, idKeys...),
		Title:       text(r, titleKeys...),
		Slug:        slugOf(r),
		Excerpt:     text(r, excerptKeys...),
		Body:        body(r),
		Author:      author(r),
		PublishedAt: date(r, dateKeys...),
		Category:    text(r, categoryKeys...),
		Tags:        strs(r, tagKeys...),
		CoverImage:  text(r, imageKeys...),
	}

	if p.Title == "" {
		p.Title = DefaultTitle
	}
	p.Slug = firstNonEmpty(p.Slug, Slugify(p.ID), Slugify(p.Title))
	if p.ID == "" {
		p.ID = "legacy-" + p.Slug
	}
	if p.Author == "" {
		p.Author = DefaultAuthor
	}
	p.Tags = ensureTags(p.Tags, p.Category)
	return p
}

// NormalizePosts converts every record.
func NormalizePosts(records []legacy.Record) ([]Post, error) {
	posts := make([]Post, 0, len(records))
	for _, r := range records {
		posts = append(posts, NormalizePost(r))
	}
	return posts, nil
}

// NormalizeCaseStudy converts a legacy record into a CaseStudy, defaulting the
// title, slug and industry.
func NormalizeCaseStudy(r legacy.Record) CaseStudy {
	cs := CaseStudy{
		ID:          text(r, idKeys...),
		Title:       text(r, titleKeys...),
		Slug:        slugOf(r),
		Client:      text(r, clientKeys...),
		Industry:    text(r, industryKeys...),
		Summary:     text(r, caseSummaryKeys...),
		Results:     strs(r, resultsKeys...),
		PublishedAt: date(r, dateKeys...),
		CoverImage:  text(r, imageKeys...),
	}

	if cs.Title == "" {
		cs.Title = firstNonEmpty(cs.Client, DefaultTitle)
	}
	cs.Slug = firstNonEmpty(cs.Slug, Slugify(cs.ID), Slugify(cs.Title))
	if cs.ID == "" {
		cs.ID = "legacy-" + cs.Slug
	}
	if cs.Industry == "" {
		cs.Industry = DefaultIndustry
	}
	return cs
}

// NormalizeCaseStudies converts every record.
func NormalizeCaseStudies(records []legacy.Record) ([]CaseStudy, error) {
	out := make([]CaseStudy, 0, len(records))
	for _, r := range records {
		out = append(out, NormalizeCaseStudy(r))
	}
	return out, nil
}

// ensureTags returns tags without blanks, or [category], or ["General"].
func ensureTags(tags []string, category string) []string {
	out := tags[:0:0]
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) > 0 {
		return out
	}
	if category = strings.TrimSpace(category); category != "" {
		return []string{category}
	}
	return []string{DefaultTag}
}

// Slugify lowercases s and joins its letter and digit runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// text returns the first alias holding a scalar, rendered as a string.
func text(r legacy.Record, keys ...string) string {
	for _, k := range keys {
		if s := scalar(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		// Reference-shaped values: {"current": "..."}, {"name": "..."}, {"title": "..."}.
		for _, k := range []string{"current", "name", "title", "url"} {
			if s := scalar(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

func slugOf(r legacy.Record) string {
	return Slugify(text(r, slugKeys...))
}

func author(r legacy.Record) string {
	return text(r, authorKeys...)
}

// strs reads a list field, accepting an array of scalars or references, or a
// comma-separated string.
func strs(r legacy.Record, keys ...string) []string {
	for _, k := range keys {
		switch t := r[k].(type) {
		case []any:
			var out []string
			for _, item := range t {
				if s := scalar(item); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			var out []string
			for _, part := range strings.Split(t, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func body(r legacy.Record) json.RawMessage {
	for _, k := range bodyKeys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		b, err := json.Marshal(v)
		if err == nil {
			return b
		}
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// date parses the first alias holding a recognizable date. Numbers are Unix
// seconds. Unparseable values yield the zero time.
func date(r legacy.Record, keys ...string) time.Time {
	for _, k := range keys {
		switch t := r[k].(type) {
		case string:
			for _, layout := range dateLayouts {
				if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
					return ts.UTC()
				}
			}
		case float64:
			return time.Unix(int64(t), 0).UTC()
		}
	}
	return time.Time{}
}
