package portal

import "net/http"

func (p *Portal) handleIndex(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "index.html", "Home", nil)
}

func (p *Portal) handleProfile(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "profile.html", "Profile", nil)
}

func (p *Portal) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := p.catalog.ListProducts(r.Context())
	if err != nil {
		p.serverError(w, r, "failed to list products", err)
		return
	}

	if p.images != nil {
		for _, product := range products {
			if product.ImageKey == "" {
				continue
			}
			url, err := p.images.URL(r.Context(), product.ImageKey)
			if err != nil {
				p.logger.WarnContext(r.Context(), "failed to resolve product image",
					"product_id", product.ID, "image_key", product.ImageKey, "error", err)
				continue
			}
			product.ImageURL = url
		}
	}

	p.renderTemplate(w, r, "products.html", "Products", map[string]any{
		"Products": products,
	})
}

func (p *Portal) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := p.catalog.ListCategories(r.Context())
	if err != nil {
		p.serverError(w, r, "failed to list categories", err)
		return
	}
	p.renderTemplate(w, r, "categories.html", "Categories", map[string]any{
		"Categories": categories,
	})
}

// handleUsers lists the shop's customers, not the staff accounts.
func (p *Portal) handleUsers(w http.ResponseWriter, r *http.Request) {
	clients, err := p.catalog.ListClients(r.Context())
	if err != nil {
		p.serverError(w, r, "failed to list clients", err)
		return
	}
	p.renderTemplate(w, r, "users.html", "Users", map[string]any{
		"Users": clients,
	})
}

func (p *Portal) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "analytics.html", "Analytics", map[string]any{
		"Analytics": placeholderAnalytics(),
	})
}
