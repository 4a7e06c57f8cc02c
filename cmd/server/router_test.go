package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credhandler "shebacred/internal/credential/handler"
	jwttoken "shebacred/internal/jwt_token"
	"shebacred/internal/platform/config"
	dochandler "shebacred/internal/verification/handler"
	"shebacred/internal/verification/models"
	id "shebacred/pkg/domain"
	"shebacred/pkg/testutil"
)

func newTestApp(t *testing.T, tweaks ...func(*config.Server)) (*app, *jwttoken.JWTService) {
	t.Helper()
	cfg := config.Server{
		Addr:          ":0",
		JWTSigningKey: "router-test-key",
		JWTIssuer:     "shebacred-test",
		PublicBaseURL: "https://verify.example.et",
		Redis:         config.RedisConfig{CacheTTL: time.Minute},
		OCR:           config.OCR{MaxRetries: 1, MaxImageBytes: 1 << 20},
		Verification:  config.Verification{BatchMaxTexts: 5, BatchConcurrency: 2},
	}
	for _, tweak := range tweaks {
		tweak(&cfg)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := build(context.Background(), cfg, log, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a, jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
}

func mint(t *testing.T, tokens *jwttoken.JWTService, principal id.PrincipalID, issuer id.IssuerID) string {
	t.Helper()
	token, err := tokens.GenerateAccessToken(principal, issuer, time.Hour)
	require.NoError(t, err)
	return token
}

func TestRouterVerificationJourney(t *testing.T) {
	a, tokens := newTestApp(t)
	issuerToken := mint(t, tokens, id.NewPrincipalID(), id.NewIssuerID())
	holderToken := mint(t, tokens, id.NewPrincipalID(), id.IssuerID{})

	send := func(method, path, token string, body any) *http.Request {
		return testutil.WithBearer(testutil.NewJSONRequest(t, method, path, body), token)
	}

	var credentialID string
	testutil.Given(t, "an issuer registers a credential", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, send(http.MethodPost, "/issuer/credentials", issuerToken, map[string]any{
			"fields": map[string]any{
				"full_name":         "Abebe Kebede",
				"serial_number":     "ET/24/00001",
				"certificate_title": "Computer Science",
			},
		}))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		credentialID = testutil.UnmarshalResponse[credhandler.CredentialResponse](t, rr).ID
	})

	testutil.When(t, "the holder submits an exact transcription", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, send(http.MethodPost, "/documents", holderToken, map[string]string{
			"raw_text": "Name: Abebe Kebede\nID: ET/24/00001\nProgram: Computer Science",
		}))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[dochandler.SubmissionResponse](t, rr)

		testutil.Then(t, "the trusted record is returned", func(t *testing.T) {
			assert.Equal(t, models.OutcomeVerified, resp.Verdict.Outcome)
			assert.Equal(t, "Abebe Kebede", resp.Verdict.TrustedFields["full_name"])
		})

		testutil.Then(t, "the document is publicly verifiable", func(t *testing.T) {
			rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodGet, "/public/documents/"+resp.DocumentID, nil))
			require.Equal(t, http.StatusOK, rr.Code)
			status := testutil.UnmarshalResponse[models.PublicStatus](t, rr)
			assert.True(t, status.Verified)

			qr := testutil.DoRequest(a.router, send(http.MethodGet, "/documents/"+resp.DocumentID+"/qrcode", holderToken, nil))
			require.Equal(t, http.StatusOK, qr.Code)
			assert.True(t, bytes.HasPrefix(qr.Body.Bytes(), []byte("\x89PNG")))
		})
	})

	testutil.When(t, "the name differs beyond the threshold", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, send(http.MethodPost, "/documents", holderToken, map[string]string{
			"raw_text": "Name: Abebe Kebede Alemu\nID: ET/24/00001\nProgram: Computer Science",
		}))
		resp := testutil.UnmarshalResponse[dochandler.SubmissionResponse](t, rr)

		testutil.Then(t, "the attempt is unverified", func(t *testing.T) {
			assert.Equal(t, models.OutcomeUnverified, resp.Verdict.Outcome)
			assert.Equal(t, models.ReasonBelowThreshold, resp.Verdict.Reason)
		})
	})

	testutil.When(t, "an OCR typo surfaces a candidate", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, send(http.MethodPost, "/documents", holderToken, map[string]string{
			"raw_text": "Name: Abebe Kebode\nID: ET/24/00001\nProgram: Computer Science",
		}))
		resp := testutil.UnmarshalResponse[dochandler.SubmissionResponse](t, rr)
		require.Equal(t, models.OutcomeConfirmationRequired, resp.Verdict.Outcome)
		assert.Equal(t, credentialID, resp.Verdict.CandidateID)
		require.NotNil(t, resp.Verdict.SimilarityScore)
		assert.Greater(t, *resp.Verdict.SimilarityScore, 90)

		confirmPath := "/documents/" + resp.DocumentID + "/confirm"
		body := map[string]string{"candidate_id": credentialID}

		testutil.Then(t, "the holder can confirm it once", func(t *testing.T) {
			rr := testutil.DoRequest(a.router, send(http.MethodPost, confirmPath, holderToken, body))
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			confirmed := testutil.UnmarshalResponse[dochandler.SubmissionResponse](t, rr)
			assert.Equal(t, models.OutcomeVerified, confirmed.Verdict.Outcome)

			again := testutil.DoRequest(a.router, send(http.MethodPost, confirmPath, holderToken, body))
			testutil.AssertStatusAndError(t, again, http.StatusConflict, "conflict")
		})

		testutil.And(t, "another principal cannot confirm it", func(t *testing.T) {
			stranger := mint(t, tokens, id.NewPrincipalID(), id.IssuerID{})
			rr := testutil.DoRequest(a.router, send(http.MethodPost, confirmPath, stranger, body))
			testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
		})
	})
}

func TestRouterAccessControl(t *testing.T) {
	a, tokens := newTestApp(t)
	holderToken := mint(t, tokens, id.NewPrincipalID(), id.IssuerID{})

	testutil.Given(t, "no bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodPost, "/documents", map[string]string{"raw_text": "x"}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	testutil.Given(t, "a holder calling an issuer route", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/issuer/credentials", nil), holderToken)
		testutil.AssertStatusAndError(t, testutil.DoRequest(a.router, req), http.StatusForbidden, "forbidden")
	})

	testutil.Given(t, "image upload without a recognizer", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/documents/image", nil), holderToken)
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		req.Body = io.NopCloser(strings.NewReader("--x\r\nContent-Disposition: form-data; name=\"certificate\"; filename=\"c.png\"\r\n\r\npng\r\n--x--\r\n"))
		testutil.AssertStatusAndError(t, testutil.DoRequest(a.router, req), http.StatusServiceUnavailable, "service_unavailable")
	})
}

func TestRouterOpsEndpoints(t *testing.T) {
	a, tokens := newTestApp(t)
	holderToken := mint(t, tokens, id.NewPrincipalID(), id.IssuerID{})
	testutil.DoRequest(a.router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/documents",
		map[string]string{"raw_text": "short"}), holderToken))

	rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `sheba_verification_verdicts_total{outcome="PARSE_FAILED"`)
	assert.Contains(t, rr.Body.String(), "sheba_http_requests_total")
}

func TestRouterRateLimitsSubmissions(t *testing.T) {
	a, tokens := newTestApp(t, func(cfg *config.Server) {
		cfg.Verification.SubmitLimit = 2
		cfg.Verification.SubmitWindow = time.Hour
	})
	holder := id.NewPrincipalID()
	holderToken := mint(t, tokens, holder, id.IssuerID{})
	otherToken := mint(t, tokens, id.NewPrincipalID(), id.IssuerID{})

	submit := func(token string) *http.Request {
		return testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/documents",
			map[string]string{"raw_text": "Name: Abebe Kebede"}), token)
	}

	for range 2 {
		assert.Equal(t, http.StatusCreated, testutil.DoRequest(a.router, submit(holderToken)).Code)
	}
	rr := testutil.DoRequest(a.router, submit(holderToken))
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusCreated, testutil.DoRequest(a.router, submit(otherToken)).Code, "limits are per principal")
}
