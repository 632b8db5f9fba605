package agent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/golemcore/agentd/pkg/models"
)

var codeExtensions = []string{
	".go", ".py", ".js", ".ts", ".java", ".rs", ".c", ".cpp", ".h",
	".rb", ".php", ".sh", ".sql", ".yaml", ".yml", ".json", ".toml",
}

var codeCommands = []string{
	"git ", "docker ", "kubectl ", "npm ", "pip ", "cargo ", "make ",
	"gcc ", "go build", "go test", "pytest ", "mvn ",
}

var stackTracePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s+at\s+[\w.$]+\(`),
	regexp.MustCompile(`(?m)^Traceback \(most recent call last\)`),
	regexp.MustCompile(`(?m)^goroutine \d+ \[`),
	regexp.MustCompile(`panic: `),
	regexp.MustCompile(`segmentation fault`),
}

// tierStage escalates the model tier when the conversation turns into
// coding work. Escalation is one-way within a turn: once on the coding
// tier, the turn stays there. Inference only looks at material the turn
// produced (tool output mostly), never at the user's own phrasing, so
// it stays off on the first round.
type tierStage struct {
	logger *slog.Logger
}

func newTierStage(logger *slog.Logger) *tierStage {
	return &tierStage{logger: logger}
}

func (s *tierStage) Name() string { return "dynamic_tier" }

func (s *tierStage) Order() int { return OrderTier }

func (s *tierStage) Enabled() bool { return true }

func (s *tierStage) ShouldProcess(_ context.Context, turn *TurnContext) bool {
	return turn.Round > 0 && turn.ModelTier != TierCoding
}

func (s *tierStage) Process(_ context.Context, turn *TurnContext) error {
	for _, text := range s.candidateTexts(turn) {
		if looksLikeCode(text) {
			s.logger.Info("model tier upgraded",
				"chat_id", turn.ChatID(),
				"from", turn.ModelTier,
				"to", TierCoding)
			turn.ModelTier = TierCoding
			return nil
		}
	}
	return nil
}

// candidateTexts returns the texts worth inspecting this pass: only
// material produced since the user last spoke.
func (s *tierStage) candidateTexts(turn *TurnContext) []string {
	lastUser := -1
	for i, msg := range turn.History {
		if msg.Role == models.RoleUser {
			lastUser = i
		}
	}
	var texts []string
	for _, msg := range turn.History[lastUser+1:] {
		if msg.Content != "" {
			texts = append(texts, msg.Content)
		}
	}
	return texts
}

func looksLikeCode(text string) bool {
	lower := strings.ToLower(text)
	for _, ext := range codeExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	for _, cmd := range codeCommands {
		if strings.Contains(lower, cmd) {
			return true
		}
	}
	for _, p := range stackTracePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
