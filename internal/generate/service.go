package generate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/config"
)

// maxParallelVariants bounds concurrent provider calls from one
// GenerateVariants call.
const maxParallelVariants = 4

// Request describes the document to generate.
type Request struct {
	Kind    string                 `json:"kind"` // product, seller, advert or custom
	Prompt  string                 `json:"prompt"`
	Content map[string]interface{} `json:"content,omitempty"`
	Images  []string               `json:"images,omitempty"`

	variant, variants int
}

// Result is one generated document.
type Result struct {
	Document *listingkit.Document `json:"document"`
	Attempts int                  `json:"attempts"`
	Provider string               `json:"provider"`
}

// Service generates documents through a Backend with retries, a circuit
// breaker and validation-driven re-prompting.
type Service struct {
	backend     Backend
	retry       RetryConfig
	breaker     *CircuitBreaker
	limiter     *rate.Limiter
	maxAttempts int
	timeout     time.Duration
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRetryConfig replaces the default retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithCircuitBreaker replaces the default circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(s *Service) { s.breaker = cb }
}

// WithMaxAttempts sets how many answers are requested before giving up on
// invalid output.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithRateLimit caps provider calls per second across all requests.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Service) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service around backend.
func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:     backend,
		retry:       DefaultRetryConfig(),
		maxAttempts: 2,
		timeout:     60 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = NewCircuitBreaker(backend.Name(), DefaultCircuitBreakerConfig(), s.logger)
	}
	return s
}

// NewServiceFromConfig builds the configured backend and wraps it.
func NewServiceFromConfig(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("generate")

	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	breaker := NewCircuitBreaker(backend.Name(), CircuitBreakerConfig{
		FailureThreshold: cfg.GetCircuitFailureThreshold(),
		SuccessThreshold: cfg.GetCircuitSuccessThreshold(),
		Timeout:          cfg.GetCircuitTimeout(),
		FailureWindow:    time.Minute,
	}, logger)

	return NewService(backend,
		WithLogger(logger),
		WithCircuitBreaker(breaker),
		WithRetryConfig(RetryConfig{
			MaxRetries: cfg.GetRetryMaxRetries(),
			BaseDelay:  cfg.GetRetryBaseDelay(),
			MaxDelay:   cfg.GetRetryMaxDelay(),
			Multiplier: 2.0,
		}),
		WithMaxAttempts(cfg.GetMaxAttempts()),
		WithTimeout(cfg.GetTimeout()),
		WithRateLimit(cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst()),
	), nil
}

// Provider returns the backend name.
func (s *Service) Provider() string {
	return s.backend.Name()
}

// Breaker exposes the circuit breaker for health reporting.
func (s *Service) Breaker() *CircuitBreaker {
	return s.breaker
}

// Generate asks the backend for a document. Answers that fail
// ParseGenerated are sent back with their problem list, up to the
// configured number of attempts. Provider failures are not re-prompted.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if req.Kind == "" {
		req.Kind = listingkit.TemplateCustom
	}
	if _, ok := kindBriefs[req.Kind]; !ok {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrInvalidRequest, req.Kind)
	}

	system := systemPrompt(req.Kind)
	user := userPrompt(req)
	prompt := user

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		answer, err := s.complete(ctx, system, prompt)
		if err != nil {
			return nil, err
		}

		doc, err := listingkit.ParseGenerated([]byte(answer))
		if err == nil {
			s.finish(doc, req)
			s.logger.Info("document generated",
				zap.String("kind", req.Kind), zap.Int("attempt", attempt))
			return &Result{Document: doc, Attempts: attempt, Provider: s.backend.Name()}, nil
		}

		lastErr = err
		s.logger.Warn("generated document rejected",
			zap.String("kind", req.Kind), zap.Int("attempt", attempt), zap.Error(err))
		prompt = repairPrompt(user, answer, err)
	}
	return nil, &AttemptsError{Attempts: s.maxAttempts, Err: lastErr}
}

// GenerateVariants runs n generations in parallel. The first failure
// cancels the rest.
func (s *Service) GenerateVariants(ctx context.Context, req Request, n int) ([]*Result, error) {
	if n <= 1 {
		r, err := s.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		return []*Result{r}, nil
	}

	results := make([]*Result, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelVariants)
	for i := 0; i < n; i++ {
		variant := req
		variant.variant, variant.variants = i+1, n
		g.Go(func() error {
			r, err := s.Generate(gctx, variant)
			if err != nil {
				return fmt.Errorf("variant %d: %w", i+1, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	return WithRetry(ctx, s.retry, s.logger, func(ctx context.Context) (string, error) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		return s.breaker.Execute(ctx, func(ctx context.Context) (string, error) {
			if s.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}
			return s.backend.Complete(ctx, system, user)
		})
	})
}

// finish records the kind and merges the seller's content and images over
// whatever the model produced.
func (s *Service) finish(doc *listingkit.Document, req Request) {
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	if doc.Template() == "" || doc.Template() == listingkit.TemplateCustom {
		doc.Metadata["template"] = req.Kind
	}
	if len(req.Content) > 0 {
		if doc.Content == nil {
			doc.Content = make(map[string]interface{}, len(req.Content))
		}
		for k, v := range req.Content {
			doc.Content[k] = v
		}
	}
	if len(req.Images) > 0 {
		doc.Images = append([]string(nil), req.Images...)
	}
}
