package portal

import (
	"net/http"

	"github.com/storeadmin-io/storeadmin/internal/auth"
	"github.com/storeadmin-io/storeadmin/internal/errutil"
	"github.com/storeadmin-io/storeadmin/internal/metrics"
)

const (
	msgLoginFailed     = "Please check your login details and try again."
	msgEmailTaken      = "Email address already exists"
	msgPasswordsDiffer = "Password not matching"
	msgMissingFields   = "Please fill in all required fields"
	msgResetRequested  = "If the email is linked to an account, you will receive a reset link shortly. Check your inbox and spam folder"
	msgResetLinkBad    = "This reset link is invalid or has expired."
)

func (p *Portal) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "login.html", "Login", nil)
}

func (p *Portal) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	remember := r.FormValue("remember") != ""

	user, err := p.auth.Authenticate(r.Context(), email, password)
	if err != nil {
		if errutil.HasCode(err, "AUTH_INVALID_CREDENTIALS") {
			p.metrics.Logins.WithLabelValues(metrics.ResultFailure).Inc()
			p.redirectWithFlash(w, r, "/login", msgLoginFailed)
			return
		}
		p.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		p.serverError(w, r, "login failed", err)
		return
	}

	if _, err := p.sessions.Login(r.Context(), w, user, remember); err != nil {
		p.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		p.serverError(w, r, "session creation failed", err)
		return
	}

	p.metrics.Logins.WithLabelValues(metrics.ResultSuccess).Inc()
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (p *Portal) handleSignup(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "signup.html", "Sign Up", nil)
}

func (p *Portal) handleSignupPost(w http.ResponseWriter, r *http.Request) {
	_, err := p.auth.Signup(r.Context(), auth.SignupInput{
		Email:         r.FormValue("email"),
		Name:          r.FormValue("name"),
		Password:      r.FormValue("password"),
		PasswordCheck: r.FormValue("password_check"),
	})
	if err != nil {
		var msg string
		switch {
		case errutil.HasCode(err, "AUTH_EMAIL_TAKEN"):
			msg = msgEmailTaken
		case errutil.HasCode(err, "AUTH_PASSWORD_MISMATCH"):
			msg = msgPasswordsDiffer
		case errutil.HasCode(err, "AUTH_MISSING_FIELDS"):
			msg = msgMissingFields
		default:
			p.metrics.Signups.WithLabelValues(metrics.ResultError).Inc()
			p.serverError(w, r, "signup failed", err)
			return
		}
		p.metrics.Signups.WithLabelValues(metrics.ResultRejected).Inc()
		p.redirectWithFlash(w, r, "/signup", msg)
		return
	}

	p.metrics.Signups.WithLabelValues(metrics.ResultSuccess).Inc()
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (p *Portal) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := p.sessions.Logout(r.Context(), w, r); err != nil {
		errutil.LogError(p.logger, "logout failed", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleResetRequest shows the request form. A token in the query string,
// as sent in reset emails, is checked and its status shown.
func (p *Portal) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	if token := r.URL.Query().Get("token"); token != "" {
		if email, ok := p.auth.VerifyResetToken(token); ok {
			data["ResetEmail"] = email
		} else {
			data["Flash"] = msgResetLinkBad
		}
	}
	p.renderTemplate(w, r, "reset_password_request.html", "Reset Password", data)
}

// handleResetRequestPost answers the same way whether or not the email
// belongs to an account.
func (p *Portal) handleResetRequestPost(w http.ResponseWriter, r *http.Request) {
	p.metrics.ResetRequests.Inc()
	if _, err := p.auth.RequestPasswordReset(r.Context(), r.FormValue("email")); err != nil {
		errutil.LogError(p.logger, "password reset request failed", err)
	}
	p.renderTemplate(w, r, "reset_password_request.html", "Reset Password", map[string]any{
		"Flash": msgResetRequested,
	})
}
