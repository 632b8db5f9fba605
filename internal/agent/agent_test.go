package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golemcore/agentd/internal/channels"
	"github.com/golemcore/agentd/internal/plans"
	"github.com/golemcore/agentd/internal/ratelimit"
	"github.com/golemcore/agentd/internal/sessions"
	"github.com/golemcore/agentd/internal/tools"
	"github.com/golemcore/agentd/pkg/models"
)

// scriptedProvider returns canned responses in order. Running past the
// script is a test bug and fails loudly.
type scriptedProvider struct {
	mu       sync.Mutex
	script   []providerStep
	requests []models.LLMRequest
}

type providerStep struct {
	resp *models.LLMResponse
	err  error
}

func respondText(text string) providerStep {
	return providerStep{resp: &models.LLMResponse{Content: text, Model: "test-model"}}
}

func respondCalls(content string, calls ...models.ToolCall) providerStep {
	return providerStep{resp: &models.LLMResponse{Content: content, ToolCalls: calls, Model: "test-model"}}
}

func respondErr(err error) providerStep {
	return providerStep{err: err}
}

func (p *scriptedProvider) Complete(_ context.Context, req models.LLMRequest) (*models.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return nil, errors.New("scripted provider exhausted")
	}
	step := p.script[0]
	p.script = p.script[1:]
	return step.resp, step.err
}

// fakePort records everything sent through it.
type fakePort struct {
	mu          sync.Mutex
	texts       []string
	attachments []models.Attachment
	sendErr     error
}

func (f *fakePort) ChannelType() models.ChannelType { return models.ChannelConsole }

func (f *fakePort) SendText(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakePort) SendAttachment(_ context.Context, _ string, att models.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.attachments = append(f.attachments, att)
	return nil
}

func (f *fakePort) ShowTyping(context.Context, string) error { return nil }

func (f *fakePort) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// fakeConfirmer answers approval requests from a per-action table.
type fakeConfirmer struct {
	available bool
	approvals map[string]bool
	err       error
	requests  []string
}

func (f *fakeConfirmer) Available() bool { return f.available }

func (f *fakeConfirmer) RequestApproval(_ context.Context, _ string, action, _ string) (bool, error) {
	f.requests = append(f.requests, action)
	if f.err != nil {
		return false, f.err
	}
	return f.approvals[action], nil
}

// testTool is a scriptable tool for registry-backed tests.
type testTool struct {
	name    string
	execute func(ctx context.Context, args map[string]any) (models.ToolResult, error)
}

func (t *testTool) Name() string { return t.name }

func (t *testTool) Enabled() bool { return true }

func (t *testTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{Name: t.name, Parameters: map[string]any{"type": "object"}}
}

func (t *testTool) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	if t.execute != nil {
		return t.execute(ctx, args)
	}
	return models.ToolSuccess("ok"), nil
}

func newToolRegistry(t *testing.T, toolList ...tools.Tool) (*tools.Registry, *tools.Executor) {
	t.Helper()
	registry := tools.NewRegistry()
	for _, tool := range toolList {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("Register(%s) error: %v", tool.Name(), err)
		}
	}
	return registry, tools.NewExecutor(registry, tools.WithTimeout(time.Second))
}

// harness bundles a fully wired runner plus handles to its fakes.
type harness struct {
	runner    *Runner
	provider  *scriptedProvider
	port      *fakePort
	confirmer *fakeConfirmer
	sessions  sessions.Store
	plans     *plans.Service
}

type harnessOptions struct {
	script    []providerStep
	tools     []tools.Tool
	approvals map[string]bool
	planMode  bool
	maxRounds int
	limiter   *ratelimit.Limiter
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	provider := &scriptedProvider{script: opts.script}
	registry, executor := newToolRegistry(t, opts.tools...)

	port := &fakePort{}
	channelRegistry := channels.NewRegistry()
	if err := channelRegistry.Register(port); err != nil {
		t.Fatalf("register channel: %v", err)
	}

	confirmer := &fakeConfirmer{available: true, approvals: opts.approvals}
	sessionStore := sessions.NewMemoryStore()
	planService := plans.NewService(plans.NewMemoryStore(), opts.planMode, slog.Default())

	maxRounds := opts.maxRounds
	if maxRounds == 0 {
		maxRounds = 5
	}

	runner, err := NewRunner(Config{
		Provider:     provider,
		ToolRegistry: registry,
		ToolExecutor: executor,
		Sessions:     sessionStore,
		Plans:        planService,
		Channels:     channelRegistry,
		Confirmer:    confirmer,
		Limiter:      opts.limiter,
		Logger:       slog.Default(),
		SystemPrompt: "You are a test assistant.",
		Models:       map[string]string{TierStandard: "test-model", TierCoding: "test-model-coding"},
		MaxRounds:    maxRounds,
	})
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}
	return &harness{
		runner:    runner,
		provider:  provider,
		port:      port,
		confirmer: confirmer,
		sessions:  sessionStore,
		plans:     planService,
	}
}

func userMessage(content string) *models.Message {
	return &models.Message{
		Channel:   models.ChannelConsole,
		ChatID:    "chat-1",
		SenderID:  "user-1",
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func newTestTurn(incoming *models.Message, maxRounds int) *TurnContext {
	session := &models.Session{
		ID:      "session-1",
		Channel: models.ChannelConsole,
		ChatID:  "chat-1",
	}
	history := []*models.Message{incoming}
	return NewTurnContext(session, incoming, history, maxRounds)
}
