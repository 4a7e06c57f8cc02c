package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	credmodels "shebacred/internal/credential/models"
	"shebacred/internal/verification/handler/mocks"
	"shebacred/internal/verification/models"
	"shebacred/internal/verification/service"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	"shebacred/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	service   *mocks.MockService
	router    chi.Router
	principal id.PrincipalID
	cred      *credmodels.TrustedCredential
	now       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.principal = id.NewPrincipalID()
	s.now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	cred, err := credmodels.NewTrustedCredential(id.NewIssuerID(), credmodels.Fields{
		"full_name":     "Abebe Kebede",
		"serial_number": "AAU/2024/001",
	}, s.now)
	s.Require().NoError(err)
	s.cred = cred

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, logger, "https://verify.example.et", WithMaxImageBytes(1024))

	s.router = chi.NewRouter()
	h.RegisterPublic(s.router)
	s.router.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		h.Register(r)
	})
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

// authenticate stands in for RequireAuth: a "Bearer ok" header
// authenticates as s.principal.
func (s *HandlerSuite) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer ok" {
			r = r.WithContext(requestcontext.WithPrincipalID(r.Context(), s.principal))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer ok")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *HandlerSuite) submission(v models.Verdict) *service.Submission {
	doc := models.NewDocument(s.principal, "text", s.now)
	doc.Record("text", v, s.now)
	return &service.Submission{Document: doc, Verdict: v}
}

func (s *HandlerSuite) TestSubmit() {
	s.Run("verified verdict carries trusted fields", func() {
		sub := s.submission(models.Verified(s.cred))
		s.service.EXPECT().Submit(gomock.Any(), s.principal, "Name: Abebe Kebede").Return(sub, nil)

		rec := s.do(http.MethodPost, "/documents", `{"raw_text":"Name: Abebe Kebede"}`)
		s.Equal(http.StatusCreated, rec.Code)
		body := s.decode(rec)
		s.Equal(sub.Document.ID.String(), body["document_id"])
		verdict := body["verdict"].(map[string]any)
		s.Equal("VERIFIED", verdict["outcome"])
		s.Equal("Abebe Kebede", verdict["trusted_fields"].(map[string]any)["full_name"])
		s.NotContains(verdict, "reason")
	})

	s.Run("blank text is passed through", func() {
		s.service.EXPECT().Submit(gomock.Any(), s.principal, "   ").Return(s.submission(models.ParseFailed()), nil)
		rec := s.do(http.MethodPost, "/documents", `{"raw_text":"   "}`)
		s.Equal(http.StatusCreated, rec.Code)
		s.Equal("PARSE_FAILED", s.decode(rec)["verdict"].(map[string]any)["outcome"])
	})

	s.Run("missing raw_text", func() {
		rec := s.do(http.MethodPost, "/documents", `{}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", s.decode(rec)["error"])
	})

	s.Run("malformed json", func() {
		rec := s.do(http.MethodPost, "/documents", `{"raw_text":`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unauthenticated", func() {
		req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"raw_text":"x"}`))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("registry outage is not described", func() {
		s.service.EXPECT().Submit(gomock.Any(), s.principal, "x").
			Return(nil, dErrors.New(dErrors.CodeInternal, "pq: connection refused"))
		rec := s.do(http.MethodPost, "/documents", `{"raw_text":"x"}`)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "connection refused")
	})
}

func (s *HandlerSuite) TestConfirmationRequiredShape() {
	sub := s.submission(models.ConfirmationRequired(s.cred, id.NewDocumentID(), 92))
	s.service.EXPECT().Submit(gomock.Any(), s.principal, "x").Return(sub, nil)

	rec := s.do(http.MethodPost, "/documents", `{"raw_text":"x"}`)
	verdict := s.decode(rec)["verdict"].(map[string]any)
	s.Equal("CONFIRMATION_REQUIRED", verdict["outcome"])
	s.Equal(s.cred.ID.String(), verdict["candidate_id"])
	s.EqualValues(92, verdict["similarity_score"])
	s.NotContains(verdict, "trusted_fields")
}

func (s *HandlerSuite) TestBatch() {
	first := s.submission(models.Unverified(models.ReasonNoIdentifier))
	second := s.submission(models.ParseFailed())
	s.service.EXPECT().VerifyBatch(gomock.Any(), s.principal, []string{"a", "b"}).
		Return([]*service.Submission{first, second}, nil)

	rec := s.do(http.MethodPost, "/documents/batch", `{"texts":["a","b"]}`)
	s.Equal(http.StatusOK, rec.Code)

	var resp BatchResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.Results, 2)
	s.Equal(models.OutcomeUnverified, resp.Results[0].Verdict.Outcome)
	s.Equal(models.ReasonNoIdentifier, resp.Results[0].Verdict.Reason)
	s.Equal(models.OutcomeParseFailed, resp.Results[1].Verdict.Outcome)

	s.Run("empty batch", func() {
		rec := s.do(http.MethodPost, "/documents/batch", `{"texts":[]}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGet() {
	doc := models.NewDocument(s.principal, "text", s.now)
	s.service.EXPECT().Get(gomock.Any(), s.principal, doc.ID).Return(doc, nil)

	rec := s.do(http.MethodGet, "/documents/"+doc.ID.String(), "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(doc.ID.String(), s.decode(rec)["id"])

	s.Run("malformed id", func() {
		rec := s.do(http.MethodGet, "/documents/not-a-uuid", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
	s.Run("not found", func() {
		other := id.NewDocumentID()
		s.service.EXPECT().Get(gomock.Any(), s.principal, other).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "document not found"))
		rec := s.do(http.MethodGet, "/documents/"+other.String(), "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestResubmitConflict() {
	docID := id.NewDocumentID()
	s.service.EXPECT().Resubmit(gomock.Any(), s.principal, docID, "new text").
		Return(nil, dErrors.New(dErrors.CodeConflict, "document has a pending candidate"))

	rec := s.do(http.MethodPost, "/documents/"+docID.String()+"/verify", `{"raw_text":"new text"}`)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestConfirm() {
	docID := id.NewDocumentID()
	verdict := models.Verified(s.cred)
	s.service.EXPECT().Confirm(gomock.Any(), s.principal, docID, s.cred.ID).Return(&verdict, nil)

	rec := s.do(http.MethodPost, "/documents/"+docID.String()+"/confirm", `{"candidate_id":"`+s.cred.ID.String()+`"}`)
	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(docID.String(), body["document_id"])
	s.Equal("VERIFIED", body["verdict"].(map[string]any)["outcome"])

	s.Run("rejected confirmation", func() {
		s.service.EXPECT().Confirm(gomock.Any(), s.principal, docID, s.cred.ID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "document or candidate not found"))
		rec := s.do(http.MethodPost, "/documents/"+docID.String()+"/confirm", `{"candidate_id":"`+s.cred.ID.String()+`"}`)
		s.Equal(http.StatusNotFound, rec.Code)
	})
	s.Run("candidate id must be a uuid", func() {
		rec := s.do(http.MethodPost, "/documents/"+docID.String()+"/confirm", `{"candidate_id":"AAU/2024/001"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestAbandon() {
	doc := models.NewDocument(s.principal, "text", s.now)
	doc.Abandon(s.now)
	s.service.EXPECT().Abandon(gomock.Any(), s.principal, doc.ID).Return(doc, nil)

	rec := s.do(http.MethodPost, "/documents/"+doc.ID.String()+"/abandon", "")
	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("UNVERIFIED", body["last_outcome"])
	s.Equal("candidate_abandoned", body["last_reason"])
}

func (s *HandlerSuite) TestQRCode() {
	doc := models.NewDocument(s.principal, "text", s.now)

	s.Run("unverified document has no code", func() {
		s.service.EXPECT().Get(gomock.Any(), s.principal, doc.ID).Return(doc, nil)
		rec := s.do(http.MethodGet, "/documents/"+doc.ID.String()+"/qrcode", "")
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("verified document", func() {
		linked := *doc
		linked.Link(s.cred.ID, s.now)
		s.service.EXPECT().Get(gomock.Any(), s.principal, doc.ID).Return(&linked, nil)
		rec := s.do(http.MethodGet, "/documents/"+doc.ID.String()+"/qrcode", "")
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("image/png", rec.Header().Get("Content-Type"))
		s.True(bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})
}

func (s *HandlerSuite) TestPublicStatusNeedsNoAuth() {
	docID := id.NewDocumentID()
	s.service.EXPECT().PublicStatus(gomock.Any(), docID).Return(&models.PublicStatus{
		DocumentID:       docID.String(),
		Verified:         true,
		IssuerID:         s.cred.IssuerID.String(),
		CredentialStatus: credmodels.StatusActive,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/public/documents/"+docID.String(), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal(true, body["verified"])
	s.NotContains(body, "trusted_fields")
}

func (s *HandlerSuite) multipart(field string, content []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "certificate.png")
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer ok")
	return req
}

func (s *HandlerSuite) TestSubmitImage() {
	s.Run("recognized image is submitted", func() {
		sub := s.submission(models.Unverified(models.ReasonBelowThreshold))
		s.service.EXPECT().SubmitImage(gomock.Any(), s.principal, []byte("png-bytes")).Return(sub, nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, s.multipart("certificate", []byte("png-bytes")))
		s.Equal(http.StatusCreated, rec.Code)
	})
	s.Run("wrong field name", func() {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, s.multipart("file", []byte("png-bytes")))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
	s.Run("oversized image", func() {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, s.multipart("certificate", bytes.Repeat([]byte("x"), 2048)))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
	s.Run("recognition unavailable", func() {
		s.service.EXPECT().SubmitImage(gomock.Any(), s.principal, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "text recognition is not configured"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, s.multipart("certificate", []byte("png-bytes")))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}
