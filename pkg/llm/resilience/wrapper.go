package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	apierrors "github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/llm"
)

// Observer receives retry and breaker events, typically a metrics recorder.
type Observer interface {
	RecordRetry(name string)
	RecordCircuitBreakerState(name string, state string)
}

// Options bundles the retry and breaker settings for a guarded upstream.
type Options struct {
	Retry          *RetryConfig
	CircuitBreaker *CircuitBreakerConfig
	Observer       Observer
}

// Guard runs calls to one upstream through a shared retry policy and breaker.
type Guard struct {
	name  string
	retry *RetryConfig
	cb    *CircuitBreaker
}

// NewGuard builds a named guard. A nil opts uses defaults.
func NewGuard(name string, opts *Options) *Guard {
	retry := DefaultRetryConfig()
	cbConfig := DefaultCircuitBreakerConfig()
	var observer Observer
	if opts != nil {
		if opts.Retry != nil {
			copied := *opts.Retry
			retry = &copied
		}
		if opts.CircuitBreaker != nil {
			copied := *opts.CircuitBreaker
			cbConfig = &copied
		}
		observer = opts.Observer
	}

	if observer != nil {
		onRetry := retry.OnRetry
		retry.OnRetry = func(attempt int, err error) {
			observer.RecordRetry(name)
			if onRetry != nil {
				onRetry(attempt, err)
			}
		}
		onChange := cbConfig.OnStateChange
		cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
			observer.RecordCircuitBreakerState(name, to.String())
			if onChange != nil {
				onChange(name, from, to)
			}
		}
	}
	return &Guard{name: name, retry: retry, cb: NewCircuitBreaker(name, cbConfig)}
}

// Do runs fn with retry and circuit breaking. Failures other than caller
// cancellation come back as ErrProvider.
func (g *Guard) Do(ctx context.Context, fn func() error) error {
	return providerError(RetryWithCircuitBreaker(ctx, g.retry, g.cb, fn))
}

// Name returns the guard name.
func (g *Guard) Name() string {
	return g.name
}

// CircuitState reports the breaker state.
func (g *Guard) CircuitState() gobreaker.State {
	return g.cb.State()
}

// providerError keeps caller cancellation intact and maps everything else to
// ErrProvider.
func providerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var errno *apierrors.Errno
	if errors.As(err, &errno) {
		return err
	}
	return apierrors.ErrProvider.WithCause(err)
}

// ResilientEmbeddingProvider adds retry and circuit breaking to an EmbeddingProvider.
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	guard    *Guard
}

var _ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)

// NewResilientEmbeddingProvider wraps provider. A nil opts uses defaults.
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, opts *Options) *ResilientEmbeddingProvider {
	return &ResilientEmbeddingProvider{provider: provider, guard: NewGuard("embedding:"+provider.Name(), opts)}
}

// Name returns the wrapped provider's name.
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name()
}

// Embed embeds texts with retry and circuit breaking.
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := r.guard.Do(ctx, func() error {
		var callErr error
		result, callErr = r.provider.Embed(ctx, texts)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EmbedSingle embeds one text with retry and circuit breaking.
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	err := r.guard.Do(ctx, func() error {
		var callErr error
		result, callErr = r.provider.EmbedSingle(ctx, text)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CircuitState reports the breaker state.
func (r *ResilientEmbeddingProvider) CircuitState() gobreaker.State {
	return r.guard.CircuitState()
}

// ResilientChatProvider adds retry and circuit breaking to a ChatProvider.
type ResilientChatProvider struct {
	provider llm.ChatProvider
	guard    *Guard
}

var _ llm.ChatProvider = (*ResilientChatProvider)(nil)

// NewResilientChatProvider wraps provider. A nil opts uses defaults.
func NewResilientChatProvider(provider llm.ChatProvider, opts *Options) *ResilientChatProvider {
	return &ResilientChatProvider{provider: provider, guard: NewGuard("chat:"+provider.Name(), opts)}
}

// Name returns the wrapped provider's name.
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name()
}

// Chat runs a conversation with retry and circuit breaking.
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var result string
	err := r.guard.Do(ctx, func() error {
		var callErr error
		result, callErr = r.provider.Chat(ctx, messages)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// Generate answers a prompt with retry and circuit breaking.
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	var result string
	err := r.guard.Do(ctx, func() error {
		var callErr error
		result, callErr = r.provider.Generate(ctx, prompt, systemPrompt)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// CircuitState reports the breaker state.
func (r *ResilientChatProvider) CircuitState() gobreaker.State {
	return r.guard.CircuitState()
}
