package portal

import (
	"bytes"
	"net/http"

	"github.com/storeadmin-io/storeadmin/internal/auth"
	"github.com/storeadmin-io/storeadmin/internal/errutil"
)

func (p *Portal) renderTemplate(w http.ResponseWriter, r *http.Request, tmplName, pageTitle string, data map[string]any) {
	p.renderStatus(w, r, http.StatusOK, tmplName, pageTitle, data)
}

// renderStatus executes base.html from the page's template set. Every page
// gets ActivePage, the signed-in User if any, and a pending flash message
// unless the handler already set one.
func (p *Portal) renderStatus(w http.ResponseWriter, r *http.Request, status int, tmplName, pageTitle string, data map[string]any) {
	ts, ok := p.templates[tmplName]
	if !ok {
		p.logger.Error("template not found", "template", tmplName)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	data["ActivePage"] = pageTitle
	if user, ok := auth.UserFromContext(r.Context()); ok {
		data["User"] = user
	}
	if _, set := data["Flash"]; !set {
		if msg := p.popFlash(w, r); msg != "" {
			data["Flash"] = msg
		}
	}

	var buf bytes.Buffer
	if err := ts.ExecuteTemplate(&buf, "base.html", data); err != nil {
		p.logger.ErrorContext(r.Context(), "template execution failed", "template", tmplName, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// serverError logs err and renders the generic error page.
func (p *Portal) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogError(p.logger, msg, err)
	p.renderStatus(w, r, http.StatusInternalServerError, "error.html", "Error", nil)
}
