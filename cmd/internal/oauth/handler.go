package oauth

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"apollo/cmd/accounts"
)

// permanentExpiry marks domain bootstrap tokens that outlive any session;
// the association between an account and its domain server does not lapse.
var permanentExpiry = time.Date(2999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Handler serves the token endpoints.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	svc      *accounts.Service
	dispatch *Dispatcher
}

// NewHandler builds the token endpoint handler. metrics may be nil.
func NewHandler(log *slog.Logger, cfg Config, svc *accounts.Service, metrics *Metrics) *Handler {
	return &Handler{
		log:      log,
		cfg:      cfg,
		svc:      svc,
		dispatch: NewDispatcher(log, svc, metrics),
	}
}

// Register mounts the token routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/oauth/token", h.handleToken)
	mux.HandleFunc("/user/tokens/new", h.handleDomainBootstrap)
	mux.HandleFunc("/api/v1/token/new", h.handleDomainTokenNew)
}

// handleToken is the grant endpoint. Every protocol-level failure answers
// 401 with the failure's wire message; only faults inside the server
// answer 500, with a generic body.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, h.log, http.StatusMethodNotAllowed, TokenErrorBody{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, h.log, http.StatusBadRequest, TokenErrorBody{Error: "cannot parse request body"})
		return
	}

	req := ParseGrantRequest(r.PostForm, bearerToken(r))
	tok, err := h.dispatch.Dispatch(r.Context(), req, senderKey(r), time.Now().UTC())
	if err != nil {
		if msg, _, ok := FailureMessage(err); ok {
			writeJSON(w, h.log, http.StatusUnauthorized, TokenErrorBody{Error: msg})
			return
		}
		h.log.Error("token grant failed", "error", err)
		writeJSON(w, h.log, http.StatusInternalServerError, TokenErrorBody{Error: "internal error"})
		return
	}

	writeJSON(w, h.log, http.StatusOK, NewTokenBody(tok))
}

// handleDomainBootstrap is the legacy human-facing flow: a domain operator
// opens it in a browser, logs in if needed, and copies the token out of
// the rendered page.
func (h *Handler) handleDomainBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	forDomain, _ := strconv.ParseBool(r.URL.Query().Get("for_domain_server"))
	if !forDomain {
		w.WriteHeader(http.StatusOK)
		return
	}

	now := time.Now().UTC()
	acct, _, err := h.svc.Registry().FindByAccessToken(r.Context(), bearerToken(r), now)
	if err != nil {
		if !accounts.IsNotFound(err) {
			h.log.Error("domain bootstrap lookup failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Location", h.cfg.DomainLoginURL)
		writeHTML(w, h.log, http.StatusFound, "")
		return
	}

	tok, err := h.svc.IssueAccessToken(r.Context(), acct, accounts.IssueInput{
		Scope:     accounts.ScopeDomain,
		ExpiresAt: permanentExpiry,
		Now:       now,
	})
	if err != nil {
		h.log.Error("domain bootstrap issuance failed", "account_id", acct.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("domain bootstrap token issued", "account_id", acct.ID)
	body := fmt.Sprintf("<center><h2>Your domain's access token is: %s</h2></center>", tok.AccessToken)
	writeHTML(w, h.log, http.StatusOK, body)
}

// handleDomainTokenNew mints a domain token for the authenticated caller
// and answers in the status envelope. An unresolved bearer token answers
// the fail envelope with 200; domain servers poll this endpoint and treat
// the envelope, not the status code, as the verdict.
func (h *Handler) handleDomainTokenNew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, h.log, http.StatusMethodNotAllowed, FailureEnvelope())
		return
	}

	now := time.Now().UTC()
	acct, _, err := h.svc.Registry().FindByAccessToken(r.Context(), bearerToken(r), now)
	if err != nil {
		if !accounts.IsNotFound(err) {
			h.log.Error("domain token lookup failed", "error", err)
			writeJSON(w, h.log, http.StatusInternalServerError, FailureEnvelope())
			return
		}
		writeJSON(w, h.log, http.StatusOK, FailureEnvelope())
		return
	}

	scope := strings.TrimSpace(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = accounts.ScopeOwner
	}

	tok, err := h.svc.IssueAccessToken(r.Context(), acct, accounts.IssueInput{
		Scope:     scope,
		ExpiresAt: now.Add(h.cfg.DomainTokenTTL),
		Now:       now,
	})
	if err != nil {
		h.log.Error("domain token issuance failed", "account_id", acct.ID, "error", err)
		writeJSON(w, h.log, http.StatusInternalServerError, FailureEnvelope())
		return
	}

	h.log.Info("domain token issued", "account_id", acct.ID, "scope", tok.Scope)
	writeJSON(w, h.log, http.StatusOK, SuccessEnvelope(DomainTokenData{
		DomainToken:            tok.AccessToken,
		TokenExpirationSeconds: tok.ExpiresIn(),
		AccountName:            acct.Username,
	}))
}

// bearerToken extracts the access token from the Authorization header.
// The "Bearer " prefix is optional; some legacy clients send the raw
// token.
func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "Bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}

// senderKey names the remote caller for session keys and logs.
func senderKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
