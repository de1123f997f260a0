package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ragd/internal/domain"
	"ragd/internal/infra/llm"
)

// State identifies one stage of the per-question state machine. Modeling
// the stages as explicit tagged states keeps each stage's failure policy
// independently testable.
type State string

const (
	StateContextualize State = "contextualize"
	StateScope         State = "scope"
	StateInvoke        State = "invoke"
	StatePostProcess   State = "post_process"
	StateGenerate      State = "generate"
	StateFallback      State = "fallback"
	StateDeliver       State = "deliver"
)

// Contextualizer rewrites the latest user turn into a standalone question.
type Contextualizer interface {
	Contextualize(ctx context.Context, turns []domain.Turn) (string, error)
}

// Generator produces a streamed answer for a question and passage set.
type Generator interface {
	Answer(ctx context.Context, question string, passages []domain.Passage, history []domain.Turn) (llm.TokenStream, error)
}

// Invoker performs one remote tool call.
type Invoker interface {
	Invoke(ctx context.Context, providerID, toolName string, params map[string]any) (string, error)
}

// RegistryReader provides the current capabilities snapshot.
type RegistryReader interface {
	Snapshot() (*domain.RegistrySnapshot, bool)
}

// CollectionResolver maps a collection to the provider serving it.
type CollectionResolver interface {
	CollectionProvider(ctx context.Context, collectionID string) (string, error)
}

// Pipeline drives one inbound question through contextualize, scope,
// invoke, post-process, and generate. Any failure in the first four stages
// routes to fallback instead of failing the question; only generation
// failures and cancellation surface as errors.
type Pipeline struct {
	registry       RegistryReader
	collections    CollectionResolver
	invoker        Invoker
	contextualizer Contextualizer
	generator      Generator
	queryTools     map[string]string
	metrics        domain.Metrics
	logger         *zap.Logger
}

type Options struct {
	Registry       RegistryReader
	Collections    CollectionResolver
	Invoker        Invoker
	Contextualizer Contextualizer
	Generator      Generator

	// QueryTools maps provider id to the knowledge-base query tool exposed
	// by that provider.
	QueryTools map[string]string

	Metrics domain.Metrics
	Logger  *zap.Logger
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &Pipeline{
		registry:       opts.Registry,
		collections:    opts.Collections,
		invoker:        opts.Invoker,
		contextualizer: opts.Contextualizer,
		generator:      opts.Generator,
		queryTools:     opts.QueryTools,
		metrics:        metrics,
		logger:         logger.Named("pipeline"),
	}
}

// Result is what the deliver stage hands to the streaming responder: the
// standalone question, the frozen passage set, and the live answer stream.
type Result struct {
	Question string
	Passages []domain.Passage
	Stream   llm.TokenStream

	// Fallback reports that the answer is degraded, along with the stage
	// that failed and the error kind that sent us there.
	Fallback  bool
	FromState State
	Code      domain.ErrorCode
}

// Answer runs the state machine for one question. turns must end with a
// user turn; violations surface as INVALID_ARGUMENT without touching any
// remote system.
func (p *Pipeline) Answer(ctx context.Context, session domain.Session, turns []domain.Turn) (*Result, error) {
	if err := domain.ValidateTurns(turns); err != nil {
		return nil, domain.Wrap(domain.CodeInvalidArgument, "pipeline.Answer", err)
	}
	original := turns[len(turns)-1].Content
	history := turns[:len(turns)-1]

	question, err := p.contextualizer.Contextualize(ctx, turns)
	if err != nil {
		if canceled(ctx, err) {
			return nil, domain.Wrap(domain.CodeCanceled, "pipeline.Answer", err)
		}
		// The original, unrewritten question is the safe substitute.
		return p.fallback(ctx, StateContextualize, err, original, history)
	}

	scope, err := p.scope(ctx, session, question)
	if err != nil {
		return p.fallback(ctx, StateScope, err, question, history)
	}

	raw, err := p.invoker.Invoke(ctx, scope.ProviderID, scope.Tool.Name, scope.Params)
	if err != nil {
		if canceled(ctx, err) {
			return nil, domain.Wrap(domain.CodeCanceled, "pipeline.Answer", err)
		}
		return p.fallback(ctx, StateInvoke, err, question, history)
	}

	passages := p.postProcess(raw)

	stream, err := p.generator.Answer(ctx, question, passages, history)
	if err != nil {
		return nil, domain.Wrap(domain.CodeGeneration, "pipeline.Answer", err)
	}
	return &Result{Question: question, Passages: passages, Stream: stream}, nil
}

// fallback produces a degraded answer without retrieved context. The
// originating state and error kind are always logged so operators can tell
// "no knowledge available" from "system broken".
func (p *Pipeline) fallback(ctx context.Context, from State, cause error, question string, history []domain.Turn) (*Result, error) {
	code, _ := domain.CodeFrom(cause)
	p.metrics.ObserveFallback(string(from), code)
	p.logger.Warn("pipeline fallback",
		zap.String("fromState", string(from)),
		zap.String("code", string(code)),
		zap.Error(cause),
	)

	stream, err := p.generator.Answer(ctx, question, nil, history)
	if err != nil {
		return nil, domain.Wrap(domain.CodeGeneration, "pipeline.fallback", err)
	}
	return &Result{
		Question:  question,
		Stream:    stream,
		Fallback:  true,
		FromState: from,
		Code:      code,
	}, nil
}

func canceled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	code, _ := domain.CodeFrom(err)
	return code == domain.CodeCanceled || errors.Is(err, context.Canceled)
}
