// Package og rewrites the static HTML shell's head metadata per content
// route so link previews (Slack, X, iMessage) show the entity being shared
// instead of the generic SPA tags. Crawlers do not execute the frontend's
// hash router, so this happens server-side on the plain paths.
package og

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/havoptic/havoptic/pkg/blob"
)

// Config locates the shell and content objects and sets URL templates.
type Config struct {
	ShellKey      string `env:"OG_SHELL_KEY" envDefault:"site/index.html"`
	BlogIndexKey  string `env:"OG_BLOG_INDEX_KEY" envDefault:"content/blog.json"`
	ToolsIndexKey string `env:"OG_TOOLS_INDEX_KEY" envDefault:"content/tools.json"`

	SiteBaseURL  string `env:"OG_SITE_BASE_URL" envDefault:"https://havoptic.com"`
	DefaultImage string `env:"OG_DEFAULT_IMAGE" envDefault:"https://havoptic.com/og-default.png"`

	// CacheMaxAge is the max-age seconds in the Cache-Control header.
	CacheMaxAge int `env:"OG_CACHE_MAX_AGE" envDefault:"3600"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		ShellKey:      "site/index.html",
		BlogIndexKey:  "content/blog.json",
		ToolsIndexKey: "content/tools.json",
		SiteBaseURL:   "https://havoptic.com",
		DefaultImage:  "https://havoptic.com/og-default.png",
		CacheMaxAge:   3600,
	}
}

// blogPost is one entry in the blog index object.
type blogPost struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Image   string `json:"image"`
}

// tool is one entry in the tools index object.
type tool struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Image   string `json:"image"`
}

type Service struct {
	store blob.Store
	cfg   Config
	log   *slog.Logger
}

func NewService(store blob.Store, cfg Config, log *slog.Logger) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// Handle returns the router serving the content routes.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/blog/{slug}", s.handleBlog)
	r.Get("/tools/{id}", s.handleTool)
	r.Get("/compare/{pair}", s.handleCompare)
	r.Get("/trends", s.handleTrends)

	return r
}

func (s *Service) handleBlog(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	post, ok := s.findPost(r.Context(), slug)
	if !ok {
		// Unknown entities fall back to the index, never a 404
		http.Redirect(w, r, "/#/blog", http.StatusFound)
		return
	}

	s.respond(w, r, "/#/blog", Meta{
		Title:       post.Title + " | Havoptic Blog",
		Description: post.Excerpt,
		URL:         s.cfg.SiteBaseURL + "/blog/" + post.Slug,
		Image:       s.imageOr(post.Image),
		Type:        "article",
	})
}

func (s *Service) handleTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := s.findTool(r.Context(), id)
	if !ok {
		http.Redirect(w, r, "/#/tools", http.StatusFound)
		return
	}

	s.respond(w, r, "/#/tools", Meta{
		Title:       t.Name + " | Havoptic",
		Description: t.Tagline,
		URL:         s.cfg.SiteBaseURL + "/tools/" + t.ID,
		Image:       s.imageOr(t.Image),
		Type:        "website",
	})
}

func (s *Service) handleCompare(w http.ResponseWriter, r *http.Request) {
	pair := chi.URLParam(r, "pair")

	left, right, ok := s.resolvePair(r.Context(), pair)
	if !ok {
		http.Redirect(w, r, "/#/compare", http.StatusFound)
		return
	}

	s.respond(w, r, "/#/compare", Meta{
		Title:       fmt.Sprintf("%s vs %s | Havoptic", left.Name, right.Name),
		Description: fmt.Sprintf("Side-by-side comparison of %s and %s: releases, features, and pricing.", left.Name, right.Name),
		URL:         s.cfg.SiteBaseURL + "/compare/" + pair,
		Image:       s.cfg.DefaultImage,
		Type:        "website",
	})
}

func (s *Service) handleTrends(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "/#/", Meta{
		Title:       "AI Coding Assistant Trends | Havoptic",
		Description: "Release cadence and adoption trends across AI coding assistants.",
		URL:         s.cfg.SiteBaseURL + "/trends",
		Image:       s.cfg.DefaultImage,
		Type:        "website",
	})
}

// respond fetches the shell, injects the tag block, and writes the document
// with the cache directive. Shell fetch failures degrade to the fallback
// redirect rather than an error status.
func (s *Service) respond(w http.ResponseWriter, r *http.Request, fallback string, m Meta) {
	shell, err := s.store.Get(r.Context(), s.cfg.ShellKey)
	if err != nil {
		s.log.Error("og: shell fetch failed",
			slog.String("key", s.cfg.ShellKey),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, fallback, http.StatusFound)
		return
	}

	doc := inject(string(shell), m)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.cfg.CacheMaxAge))
	_, _ = w.Write([]byte(doc))
}

func (s *Service) findPost(ctx context.Context, slug string) (blogPost, bool) {
	var index struct {
		Posts []blogPost `json:"posts"`
	}
	if !s.loadIndex(ctx, s.cfg.BlogIndexKey, &index) {
		return blogPost{}, false
	}

	for _, p := range index.Posts {
		if p.Slug == slug {
			return p, true
		}
	}
	return blogPost{}, false
}

func (s *Service) findTool(ctx context.Context, id string) (tool, bool) {
	tools, ok := s.loadTools(ctx)
	if !ok {
		return tool{}, false
	}

	t, ok := tools[id]
	return t, ok
}

// resolvePair splits an "a-vs-b" path segment against the known tool set.
// Tool ids themselves contain hyphens, so every "-vs-" occurrence is tried
// until both sides validate against the allow-list.
func (s *Service) resolvePair(ctx context.Context, pair string) (tool, tool, bool) {
	tools, ok := s.loadTools(ctx)
	if !ok {
		return tool{}, tool{}, false
	}

	for i := strings.Index(pair, "-vs-"); i >= 0; {
		left, lok := tools[pair[:i]]
		right, rok := tools[pair[i+len("-vs-"):]]
		if lok && rok {
			return left, right, true
		}

		next := strings.Index(pair[i+1:], "-vs-")
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return tool{}, tool{}, false
}

func (s *Service) loadTools(ctx context.Context) (map[string]tool, bool) {
	var index struct {
		Tools []tool `json:"tools"`
	}
	if !s.loadIndex(ctx, s.cfg.ToolsIndexKey, &index) {
		return nil, false
	}

	byID := make(map[string]tool, len(index.Tools))
	for _, t := range index.Tools {
		byID[t.ID] = t
	}
	return byID, true
}

func (s *Service) loadIndex(ctx context.Context, key string, dest any) bool {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Error("og: index fetch failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.log.Error("og: index unparsable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (s *Service) imageOr(image string) string {
	if image == "" {
		return s.cfg.DefaultImage
	}
	return image
}
