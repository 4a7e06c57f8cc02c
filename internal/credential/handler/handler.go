package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shebacred/internal/credential/models"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	"shebacred/pkg/platform/httputil"
	"shebacred/pkg/requestcontext"
)

// Service defines the registry write and read operations exposed to issuers.
type Service interface {
	Issue(ctx context.Context, issuer id.IssuerID, fields models.Fields) (*models.TrustedCredential, error)
	Amend(ctx context.Context, issuer id.IssuerID, credID id.CredentialID, fields models.Fields) (*models.TrustedCredential, error)
	SetStatus(ctx context.Context, issuer id.IssuerID, credID id.CredentialID, status models.Status) (*models.TrustedCredential, error)
	Get(ctx context.Context, issuer id.IssuerID, credID id.CredentialID) (*models.TrustedCredential, error)
	ListByIssuer(ctx context.Context, issuer id.IssuerID) ([]*models.TrustedCredential, error)
}

// Handler wires issuer registry endpoints to the credential service. Every
// route expects RequireAuth and RequireIssuer to have run.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/issuer/credentials", h.HandleIssue)
	r.Get("/issuer/credentials", h.HandleList)
	r.Get("/issuer/credentials/{id}", h.HandleGet)
	r.Put("/issuer/credentials/{id}", h.HandleAmend)
	r.Post("/issuer/credentials/{id}/status", h.HandleSetStatus)
}

// HandleIssue handles POST /issuer/credentials.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuer, ok := h.requireIssuer(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FieldsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cred, err := h.service.Issue(ctx, issuer, req.ParsedFields())
	if err != nil {
		h.fail(ctx, w, "credential issue failed", err)
		return
	}
	h.logger.InfoContext(ctx, "credential issued",
		"request_id", requestcontext.RequestID(ctx),
		"issuer_id", issuer,
		"credential_id", cred.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// HandleAmend handles PUT /issuer/credentials/{id}.
func (h *Handler) HandleAmend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuer, credID, ok := h.credentialParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FieldsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cred, err := h.service.Amend(ctx, issuer, credID, req.ParsedFields())
	if err != nil {
		h.fail(ctx, w, "credential amend failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// HandleSetStatus handles POST /issuer/credentials/{id}/status.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuer, credID, ok := h.credentialParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cred, err := h.service.SetStatus(ctx, issuer, credID, req.ParsedStatus())
	if err != nil {
		h.fail(ctx, w, "credential status change failed", err)
		return
	}
	h.logger.InfoContext(ctx, "credential status changed",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", cred.ID,
		"status", cred.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// HandleGet handles GET /issuer/credentials/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuer, credID, ok := h.credentialParams(w, r)
	if !ok {
		return
	}
	cred, err := h.service.Get(ctx, issuer, credID)
	if err != nil {
		h.fail(ctx, w, "credential lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// HandleList handles GET /issuer/credentials.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuer, ok := h.requireIssuer(w, ctx)
	if !ok {
		return
	}
	creds, err := h.service.ListByIssuer(ctx, issuer)
	if err != nil {
		h.fail(ctx, w, "credential list failed", err)
		return
	}
	resp := ListResponse{Credentials: make([]CredentialResponse, 0, len(creds))}
	for _, cred := range creds {
		resp.Credentials = append(resp.Credentials, toCredentialResponse(cred))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) requireIssuer(w http.ResponseWriter, ctx context.Context) (id.IssuerID, bool) {
	issuer := requestcontext.IssuerID(ctx)
	if issuer.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "issuer scope required"))
		return id.IssuerID{}, false
	}
	return issuer, true
}

func (h *Handler) credentialParams(w http.ResponseWriter, r *http.Request) (id.IssuerID, id.CredentialID, bool) {
	issuer, ok := h.requireIssuer(w, r.Context())
	if !ok {
		return id.IssuerID{}, id.CredentialID{}, false
	}
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.IssuerID{}, id.CredentialID{}, false
	}
	return issuer, credID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	log := h.logger.WarnContext
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		log = h.logger.ErrorContext
	}
	log(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"issuer_id", requestcontext.IssuerID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
