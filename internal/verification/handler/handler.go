package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"shebacred/internal/verification/models"
	"shebacred/internal/verification/service"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	"shebacred/pkg/platform/httputil"
	"shebacred/pkg/requestcontext"
)

const (
	defaultMaxImageBytes = 10 << 20
	qrSize               = 256
	imageField           = "certificate"
)

// Service defines the document verification operations the handler needs.
type Service interface {
	Submit(ctx context.Context, principal id.PrincipalID, text string) (*service.Submission, error)
	SubmitImage(ctx context.Context, principal id.PrincipalID, image []byte) (*service.Submission, error)
	VerifyBatch(ctx context.Context, principal id.PrincipalID, texts []string) ([]*service.Submission, error)
	Resubmit(ctx context.Context, principal id.PrincipalID, docID id.DocumentID, text string) (*service.Submission, error)
	Confirm(ctx context.Context, principal id.PrincipalID, docID id.DocumentID, candidateID id.CredentialID) (*models.Verdict, error)
	Abandon(ctx context.Context, principal id.PrincipalID, docID id.DocumentID) (*models.Document, error)
	Get(ctx context.Context, principal id.PrincipalID, docID id.DocumentID) (*models.Document, error)
	PublicStatus(ctx context.Context, docID id.DocumentID) (*models.PublicStatus, error)
}

// Handler wires document endpoints to the verification service.
type Handler struct {
	service       Service
	logger        *slog.Logger
	publicBaseURL string
	maxImageBytes int64
}

type Option func(*Handler)

// WithMaxImageBytes caps multipart certificate uploads.
func WithMaxImageBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxImageBytes = n
		}
	}
}

// New constructs a document handler. publicBaseURL prefixes the status link
// encoded in QR codes.
func New(service Service, logger *slog.Logger, publicBaseURL string, opts ...Option) *Handler {
	h := &Handler{
		service:       service,
		logger:        logger,
		publicBaseURL: publicBaseURL,
		maxImageBytes: defaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the authenticated document endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents", h.HandleSubmit)
	r.Post("/documents/image", h.HandleSubmitImage)
	r.Post("/documents/batch", h.HandleBatch)
	r.Get("/documents/{id}", h.HandleGet)
	r.Post("/documents/{id}/verify", h.HandleResubmit)
	r.Post("/documents/{id}/confirm", h.HandleConfirm)
	r.Post("/documents/{id}/abandon", h.HandleAbandon)
	r.Get("/documents/{id}/qrcode", h.HandleQRCode)
}

// RegisterPublic mounts the unauthenticated status endpoint.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/public/documents/{id}", h.HandlePublicStatus)
}

// HandleSubmit handles POST /documents.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sub, err := h.service.Submit(ctx, principal, req.Text())
	if err != nil {
		h.fail(ctx, w, "document submission failed", err)
		return
	}

	h.logger.InfoContext(ctx, "document submitted",
		"request_id", requestID,
		"document_id", sub.Document.ID,
		"outcome", sub.Verdict.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toSubmissionResponse(sub))
}

// HandleSubmitImage handles POST /documents/image with a multipart
// "certificate" file.
func (h *Handler) HandleSubmitImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}

	image, err := h.readImage(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid certificate upload",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	sub, err := h.service.SubmitImage(ctx, principal, image)
	if err != nil {
		h.fail(ctx, w, "image submission failed", err)
		return
	}

	h.logger.InfoContext(ctx, "document image submitted",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", sub.Document.ID,
		"outcome", sub.Verdict.Outcome,
	)
	httputil.WriteJSON(w, http.StatusCreated, toSubmissionResponse(sub))
}

// HandleBatch handles POST /documents/batch.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	subs, err := h.service.VerifyBatch(ctx, principal, req.Texts)
	if err != nil {
		h.fail(ctx, w, "batch verification failed", err)
		return
	}

	resp := BatchResponse{Results: make([]SubmissionResponse, 0, len(subs))}
	for _, sub := range subs {
		resp.Results = append(resp.Results, toSubmissionResponse(sub))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /documents/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, docID, ok := h.documentParams(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(ctx, principal, docID)
	if err != nil {
		h.fail(ctx, w, "document lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc.Response())
}

// HandleResubmit handles POST /documents/{id}/verify.
func (h *Handler) HandleResubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, docID, ok := h.documentParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	sub, err := h.service.Resubmit(ctx, principal, docID, req.Text())
	if err != nil {
		h.fail(ctx, w, "document re-verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSubmissionResponse(sub))
}

// HandleConfirm handles POST /documents/{id}/confirm.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, docID, ok := h.documentParams(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfirmRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	verdict, err := h.service.Confirm(ctx, principal, docID, req.ParsedCandidateID())
	if err != nil {
		h.fail(ctx, w, "candidate confirmation failed", err)
		return
	}

	h.logger.InfoContext(ctx, "candidate confirmed",
		"request_id", requestcontext.RequestID(ctx),
		"document_id", docID,
		"candidate_id", req.ParsedCandidateID(),
	)
	httputil.WriteJSON(w, http.StatusOK, SubmissionResponse{
		DocumentID: docID.String(),
		Verdict:    verdict.Response(),
	})
}

// HandleAbandon handles POST /documents/{id}/abandon.
func (h *Handler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, docID, ok := h.documentParams(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Abandon(ctx, principal, docID)
	if err != nil {
		h.fail(ctx, w, "candidate abandon failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc.Response())
}

// HandleQRCode handles GET /documents/{id}/qrcode. Only verified documents
// get a code; it encodes the public status URL, never the fields.
func (h *Handler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, docID, ok := h.documentParams(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(ctx, principal, docID)
	if err != nil {
		h.fail(ctx, w, "document lookup failed", err)
		return
	}
	if !doc.IsLinked() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "document is not verified"))
		return
	}

	png, err := qrcode.Encode(h.publicStatusURL(docID), qrcode.Medium, qrSize)
	if err != nil {
		h.fail(ctx, w, "qr code encoding failed", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandlePublicStatus handles GET /public/documents/{id}.
func (h *Handler) HandlePublicStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.service.PublicStatus(ctx, docID)
	if err != nil {
		h.fail(ctx, w, "public status lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) publicStatusURL(docID id.DocumentID) string {
	return h.publicBaseURL + "/public/documents/" + docID.String()
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, ctx context.Context) (id.PrincipalID, bool) {
	principal := requestcontext.PrincipalID(ctx)
	if principal.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.PrincipalID{}, false
	}
	return principal, true
}

func (h *Handler) documentParams(w http.ResponseWriter, r *http.Request) (id.PrincipalID, id.DocumentID, bool) {
	principal, ok := h.requirePrincipal(w, r.Context())
	if !ok {
		return id.PrincipalID{}, id.DocumentID{}, false
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PrincipalID{}, id.DocumentID{}, false
	}
	return principal, docID, true
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeValidation, "certificate image is too large")
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "expected multipart form with a certificate file")
	}
	file, _, err := r.FormFile(imageField)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate file is required")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read certificate file")
	}
	if int64(len(image)) > h.maxImageBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate image is too large")
	}
	if len(image) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate file is empty")
	}
	return image, nil
}

// fail logs server-side failures at error level and client mistakes at warn.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	log := h.logger.WarnContext
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		log = h.logger.ErrorContext
	}
	log(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"principal_id", requestcontext.PrincipalID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
