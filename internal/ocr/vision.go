// Package ocr turns certificate images into raw text using Google Cloud
// Vision document text detection.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxElapsed      = 10 * time.Second
)

var (
	// ErrNoText means the image was processed but carried no readable text.
	ErrNoText = errors.New("ocr: no text detected")
	// ErrRejected means Vision refused the image itself (format, size).
	ErrRejected = errors.New("ocr: image rejected")
)

// annotateFunc is the single Vision call the recognizer needs.
type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionRecognizer recognizes document text with Cloud Vision, retrying
// transient failures with exponential backoff.
type VisionRecognizer struct {
	annotate        annotateFunc
	close           func() error
	maxRetries      uint64
	initialInterval time.Duration
	languageHints   []string
	logger          *slog.Logger
}

type Option func(*VisionRecognizer)

func WithMaxRetries(n int) Option {
	return func(r *VisionRecognizer) {
		if n >= 0 {
			r.maxRetries = uint64(n)
		}
	}
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(d time.Duration) Option {
	return func(r *VisionRecognizer) { r.initialInterval = d }
}

// WithLanguageHints passes BCP-47 hints, e.g. "en", "am".
func WithLanguageHints(hints ...string) Option {
	return func(r *VisionRecognizer) { r.languageHints = hints }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *VisionRecognizer) { r.logger = logger }
}

// NewVisionRecognizer dials Cloud Vision. An empty credentialsFile uses
// application default credentials.
func NewVisionRecognizer(ctx context.Context, credentialsFile string, opts ...Option) (*VisionRecognizer, error) {
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	annotate := func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}
	return newRecognizer(annotate, client.Close, opts...), nil
}

func newRecognizer(annotate annotateFunc, closeFn func() error, opts ...Option) *VisionRecognizer {
	r := &VisionRecognizer{
		annotate:        annotate,
		close:           closeFn,
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		languageHints:   []string{"en", "am"},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize returns the full document text of image.
func (r *VisionRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: image},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: r.languageHints},
		}},
	}

	var (
		text     string
		attempts int
	)
	operation := func() error {
		attempts++
		resp, err := r.annotate(ctx, req)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		text, err = fullText(resp)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval
	policy.MaxElapsedTime = defaultMaxElapsed
	notify := func(err error, wait time.Duration) {
		r.logger.WarnContext(ctx, "text recognition retry",
			"attempt", attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		trace.SpanFromContext(ctx).AddEvent("ocr.retry", trace.WithAttributes(
			attribute.Int("attempt", attempts),
			attribute.Int64("wait_ms", wait.Milliseconds()),
		))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx), notify)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (r *VisionRecognizer) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

func fullText(resp *visionpb.BatchAnnotateImagesResponse) (string, error) {
	if resp == nil || len(resp.GetResponses()) == 0 {
		return "", ErrNoText
	}
	first := resp.GetResponses()[0]
	if e := first.GetError(); e != nil && e.GetCode() != int32(codes.OK) {
		return "", fmt.Errorf("%w: %s", ErrRejected, e.GetMessage())
	}
	text := strings.TrimSpace(first.GetFullTextAnnotation().GetText())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal, codes.Aborted:
		return true
	}
	return false
}
