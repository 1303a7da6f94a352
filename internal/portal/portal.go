// Package portal serves the administration panel's HTML pages.
package portal

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"time"

	"github.com/storeadmin-io/storeadmin/internal/auth"
	"github.com/storeadmin-io/storeadmin/internal/config"
	"github.com/storeadmin-io/storeadmin/internal/metrics"
	"github.com/storeadmin-io/storeadmin/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Catalog lists the read-only shop data shown behind the login.
type Catalog interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	ListClients(ctx context.Context) ([]*models.Client, error)
}

// ImageResolver turns a stored image key into a URL a browser can load.
type ImageResolver interface {
	URL(ctx context.Context, key string) (string, error)
}

// Options are the collaborators a Portal renders on top of.
type Options struct {
	Auth     *auth.Service
	Sessions *auth.SessionManager
	Catalog  Catalog
	// Images is optional. Leave it nil, not a typed nil pointer, when object
	// storage is not configured.
	Images  ImageResolver
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Portal struct {
	templates map[string]*template.Template
	config    *config.Config
	auth      *auth.Service
	sessions  *auth.SessionManager
	catalog   Catalog
	images    ImageResolver
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(cfg *config.Config, opts Options) (*Portal, error) {
	if opts.Auth == nil || opts.Sessions == nil || opts.Catalog == nil {
		return nil, fmt.Errorf("portal requires auth, sessions and catalog")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "portal")

	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	logger.Debug("templates loaded", "count", len(templates))

	return &Portal{
		templates: templates,
		config:    cfg,
		auth:      opts.Auth,
		sessions:  opts.Sessions,
		catalog:   opts.Catalog,
		images:    opts.Images,
		metrics:   m,
		logger:    logger,
	}, nil
}

// parseTemplates parses every page together with base.html, keyed by the
// page's file name.
func parseTemplates() (map[string]*template.Template, error) {
	pages, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := path.Base(page)
		if name == "base.html" {
			continue
		}

		ts, err := template.New(name).Funcs(templateFuncs).ParseFS(templatesFS, "templates/base.html", page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		templates[name] = ts
	}
	return templates, nil
}

var templateFuncs = template.FuncMap{
	"price": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"date":  func(t time.Time) string { return t.Format("2006-01-02") },
}
