package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/report-interpreter/internal/application"
	domain "github.com/bryanwahyu/report-interpreter/internal/domain/analysis"
)

// Service implements the report analysis use-cases. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	Relayer   domain.Relayer
	Extractor domain.Extractor
	Clock     application.Clock
	Logger    *zap.Logger
}

func NewService(relayer domain.Relayer, extractor domain.Extractor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Relayer:   relayer,
		Extractor: extractor,
		Clock:     application.SystemClock{},
		Logger:    logger,
	}
}

// AnalyzeText validates the report text, wraps it in the upstream envelope and
// returns the upstream body unchanged.
func (s *Service) AnalyzeText(ctx context.Context, reportText string) (json.RawMessage, error) {
	if err := domain.ValidateText(reportText); err != nil {
		return nil, err
	}
	if s.Relayer == nil {
		return nil, &domain.UpstreamError{Err: errors.New("text analysis is not configured")}
	}

	start := s.Clock.Now()
	raw, err := s.Relayer.Generate(ctx, domain.NewTextEnvelope(reportText))
	if err != nil {
		return nil, s.upstreamFailure("text", start, err)
	}

	s.Logger.Info("report analyzed",
		zap.String("variant", "text"),
		zap.Int("input_chars", len(reportText)),
		zap.Int("response_bytes", len(raw)),
		zap.Duration("elapsed", s.since(start)),
	)
	return raw, nil
}

// AnalyzeImage validates the uploaded image and asks the extractor for a
// structured interpretation.
func (s *Service) AnalyzeImage(ctx context.Context, img domain.ImageRequest) (*domain.Result, error) {
	detected, err := domain.ValidateImage(img)
	if err != nil {
		return nil, err
	}
	if s.Extractor == nil {
		return nil, &domain.UpstreamError{Err: errors.New("image analysis is not configured")}
	}
	img.MIMEType = detected

	start := s.Clock.Now()
	res, err := s.Extractor.Extract(ctx, img)
	if err != nil {
		return nil, s.upstreamFailure("image", start, err)
	}
	if res == nil {
		res = &domain.Result{}
	}
	res.Normalize()

	s.Logger.Info("report analyzed",
		zap.String("variant", "image"),
		zap.String("mime_type", detected),
		zap.Int("input_bytes", len(img.Data)),
		zap.Int("key_findings", len(res.Analysis.KeyFindings)),
		zap.Int("urgent_concerns", len(res.Analysis.UrgentConcerns)),
		zap.Duration("elapsed", s.since(start)),
	)
	return res, nil
}

// upstreamFailure logs the upstream detail (or transport message) and makes
// sure the returned chain always contains an *UpstreamError.
func (s *Service) upstreamFailure(variant string, start time.Time, err error) error {
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		upErr = &domain.UpstreamError{Err: fmt.Errorf("analyze %s report: %w", variant, err)}
		err = upErr
	}
	s.Logger.Error("Error analyzing report",
		zap.String("variant", variant),
		zap.Int("upstream_status", upErr.StatusCode),
		zap.Bool("quota_exceeded", errors.Is(upErr, domain.ErrQuotaExceeded)),
		zap.String("detail", upErr.LogDetail()),
		zap.Duration("elapsed", s.since(start)),
	)
	return err
}

func (s *Service) since(start time.Time) time.Duration {
	return s.Clock.Now().Sub(start)
}
