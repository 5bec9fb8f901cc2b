// Package validate screens processing results before they reach a caller.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/metrics"
)

// DefaultFallbackMessage is returned when the gate cannot assess a result.
const DefaultFallbackMessage = "I apologize, but I'm unable to provide a reliable response at the moment. " +
	"Could you please rephrase your question or try again later?"

// Advisor produces qualitative text answers for scoring prompts.
type Advisor interface {
	Assess(ctx context.Context, prompt string) (string, error)
}

// Recorder is told about every rejected result before any correction is requested.
type Recorder interface {
	RecordValidation(ctx context.Context, node, requestID string, v domain.ValidationResult)
}

// Config holds the gate thresholds.
type Config struct {
	ErrorThreshold       float64
	ConsistencyThreshold float64
	Timeout              time.Duration
	FallbackMessage      string
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold:       0.10,
		ConsistencyThreshold: 0.70,
		Timeout:              20 * time.Second,
		FallbackMessage:      DefaultFallbackMessage,
	}
}

// Validator is the fail-safe gate. It holds no per-request state.
type Validator struct {
	cfg      Config
	advisor  Advisor
	recorder Recorder
	log      *slog.Logger
}

// New creates a validator.
func New(cfg Config, advisor Advisor) *Validator {
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	return &Validator{
		cfg:     cfg,
		advisor: advisor,
		log:     slog.Default().With("component", "validator"),
	}
}

// SetRecorder registers the audit trail for rejected results.
func (v *Validator) SetRecorder(r Recorder) {
	v.recorder = r
}

// SetLogger replaces the validator's logger.
func (v *Validator) SetLogger(l *slog.Logger) {
	v.log = l.With("component", "validator")
}

// Validate scores result against req and requests a correction when either
// score misses its threshold. It never returns an error; any advisory failure
// resolves to an invalid result carrying the fallback message.
func (v *Validator) Validate(ctx context.Context, req domain.Request, result domain.Result) domain.ValidationResult {
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	var errScore, consistency float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := v.advisor.Assess(gctx, errorPrompt(result.Output))
		if err != nil {
			return fmt.Errorf("error assessment: %w", err)
		}
		errScore = parseScore(text)
		return nil
	})
	g.Go(func() error {
		text, err := v.advisor.Assess(gctx, consistencyPrompt(req.Input, result.Output))
		if err != nil {
			return fmt.Errorf("consistency assessment: %w", err)
		}
		consistency = parseScore(text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return v.failClosed(ctx, req, result, err)
	}

	if errScore <= v.cfg.ErrorThreshold && consistency >= v.cfg.ConsistencyThreshold {
		metrics.Validations.WithLabelValues("valid").Inc()
		return domain.ValidationResult{
			Valid:            true,
			ErrorScore:       errScore,
			ConsistencyScore: consistency,
		}
	}

	v.log.Warn("Result rejected",
		"request_id", req.ID,
		"node", result.NodeID,
		"error_score", errScore,
		"consistency_score", consistency,
	)
	v.record(ctx, result, domain.ValidationResult{
		Valid:            false,
		ErrorScore:       errScore,
		ConsistencyScore: consistency,
	})

	corrected, err := v.advisor.Assess(ctx, correctionPrompt(req.Input, result.Output, errScore, consistency))
	if err != nil {
		return v.failClosed(ctx, req, result, fmt.Errorf("correction: %w", err))
	}
	if corrected == "" {
		return v.failClosed(ctx, req, result, errors.New("correction: empty response"))
	}

	metrics.Validations.WithLabelValues("corrected").Inc()
	return domain.ValidationResult{
		Valid:            false,
		CorrectedOutput:  corrected,
		ErrorScore:       errScore,
		ConsistencyScore: consistency,
	}
}

func (v *Validator) failClosed(ctx context.Context, req domain.Request, result domain.Result, err error) domain.ValidationResult {
	metrics.Validations.WithLabelValues("failed_closed").Inc()
	v.log.Error("Validation failed closed", "request_id", req.ID, "error", err)
	out := domain.ValidationResult{
		Valid:           false,
		CorrectedOutput: v.cfg.FallbackMessage,
		FailedClosed:    true,
	}
	v.record(ctx, result, out)
	return out
}

func (v *Validator) record(ctx context.Context, result domain.Result, out domain.ValidationResult) {
	if v.recorder != nil {
		v.recorder.RecordValidation(ctx, result.NodeID, result.RequestID, out)
	}
}

// AnalyzeFailureScenarios asks the advisor for mitigation strategies covering
// the known failure scenarios.
func (v *Validator) AnalyzeFailureScenarios(ctx context.Context) (string, error) {
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}
	text, err := v.advisor.Assess(ctx, scenarioPrompt(FailureScenarios))
	if err != nil {
		return "", fmt.Errorf("analyze failure scenarios: %w", err)
	}
	return text, nil
}
