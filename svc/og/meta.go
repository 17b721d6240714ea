package og

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Meta describes the tag block injected into the HTML shell for one route.
type Meta struct {
	Title       string
	Description string
	URL         string
	Image       string
	Type        string
}

// Tag-stripping patterns. Matching is textual on purpose: the shell is a
// build artifact we control, not arbitrary HTML.
var (
	metaSocialRe    = regexp.MustCompile(`(?i)<meta[^>]*(?:property|name)="(?:og:|twitter:)[^"]*"[^>]*>\s*`)
	metaDescRe      = regexp.MustCompile(`(?i)<meta[^>]*name="description"[^>]*>\s*`)
	titleRe         = regexp.MustCompile(`(?is)<title>.*?</title>\s*`)
	linkCanonicalRe = regexp.MustCompile(`(?i)<link[^>]*rel="canonical"[^>]*>\s*`)
	headCloseRe     = regexp.MustCompile(`(?i)</head>`)
)

// render builds the tag block. Every interpolated value is entity-escaped;
// titles and descriptions come from content files an editor controls.
func (m Meta) render() string {
	title := html.EscapeString(m.Title)
	desc := html.EscapeString(m.Description)
	u := html.EscapeString(m.URL)
	img := html.EscapeString(m.Image)
	typ := html.EscapeString(m.Type)

	var b strings.Builder
	fmt.Fprintf(&b, "<title>%s</title>\n", title)
	fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", desc)
	fmt.Fprintf(&b, "<link rel=\"canonical\" href=\"%s\">\n", u)
	fmt.Fprintf(&b, "<meta property=\"og:title\" content=\"%s\">\n", title)
	fmt.Fprintf(&b, "<meta property=\"og:description\" content=\"%s\">\n", desc)
	fmt.Fprintf(&b, "<meta property=\"og:url\" content=\"%s\">\n", u)
	fmt.Fprintf(&b, "<meta property=\"og:image\" content=\"%s\">\n", img)
	fmt.Fprintf(&b, "<meta property=\"og:type\" content=\"%s\">\n", typ)
	fmt.Fprintf(&b, "<meta name=\"twitter:card\" content=\"summary_large_image\">\n")
	fmt.Fprintf(&b, "<meta name=\"twitter:title\" content=\"%s\">\n", title)
	fmt.Fprintf(&b, "<meta name=\"twitter:description\" content=\"%s\">\n", desc)
	fmt.Fprintf(&b, "<meta name=\"twitter:image\" content=\"%s\">\n", img)
	return b.String()
}

// inject strips any pre-existing social/title/description/canonical tags from
// the document and inserts the fresh block immediately before </head>.
func inject(doc string, m Meta) string {
	doc = metaSocialRe.ReplaceAllString(doc, "")
	doc = metaDescRe.ReplaceAllString(doc, "")
	doc = titleRe.ReplaceAllString(doc, "")
	doc = linkCanonicalRe.ReplaceAllString(doc, "")

	block := m.render()

	loc := headCloseRe.FindStringIndex(doc)
	if loc == nil {
		// Shell without a head section; emit the block up front
		return block + doc
	}
	return doc[:loc[0]] + block + doc[loc[0]:]
}
