package agent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/golemcore/agentd/pkg/models"
)

func TestTierUpgradeOnCodeSignals(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain output", "the weather tomorrow looks sunny", TierStandard},
		{"file extension", "compile failed in main.go line 12", TierCoding},
		{"tool command", "ran git status; two files changed", TierCoding},
		{"stack trace", "panic: runtime error: index out of range", TierCoding},
		{"python traceback", "Traceback (most recent call last):\n  File \"x.py\"", TierCoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := newTierStage(slog.Default())
			turn := newTestTurn(userMessage("what happened?"), 5)
			turn.Round = 1
			turn.AppendMessage(&models.Message{
				Role:    models.RoleTool,
				Content: tt.content,
			})
			if !stage.ShouldProcess(context.Background(), turn) {
				t.Fatal("ShouldProcess = false on standard tier after round 0")
			}
			if err := stage.Process(context.Background(), turn); err != nil {
				t.Fatalf("Process() error: %v", err)
			}
			if turn.ModelTier != tt.want {
				t.Errorf("ModelTier = %s, want %s", turn.ModelTier, tt.want)
			}
		})
	}
}

func TestTierNeverInfersOnFirstRound(t *testing.T) {
	stage := newTierStage(slog.Default())
	turn := newTestTurn(userMessage("can you check weather.json for me?"), 5)

	if stage.ShouldProcess(context.Background(), turn) {
		t.Fatal("ShouldProcess = true on round 0")
	}
	// Even a direct Process call must not read the user's phrasing.
	if err := stage.Process(context.Background(), turn); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if turn.ModelTier != TierStandard {
		t.Errorf("ModelTier = %s on round 0, want standard", turn.ModelTier)
	}
}

func TestTierUpgradeIsOneWay(t *testing.T) {
	stage := newTierStage(slog.Default())
	turn := newTestTurn(userMessage("what broke?"), 5)
	turn.Round = 1
	turn.AppendMessage(&models.Message{
		Role:    models.RoleTool,
		Content: "build failed: go build ./... exited 1",
	})
	if err := stage.Process(context.Background(), turn); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if turn.ModelTier != TierCoding {
		t.Fatalf("ModelTier = %s, want coding", turn.ModelTier)
	}
	// Already upgraded turns are skipped entirely.
	if stage.ShouldProcess(context.Background(), turn) {
		t.Error("ShouldProcess = true after upgrade")
	}
}

func TestTierLaterRoundsInspectToolOutput(t *testing.T) {
	stage := newTierStage(slog.Default())
	turn := newTestTurn(userMessage("what's in that archive?"), 5)
	turn.Round = 1
	turn.AppendMessage(&models.Message{
		Role:    models.RoleTool,
		Content: "archive contains: src/server.py, Makefile",
	})

	if err := stage.Process(context.Background(), turn); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if turn.ModelTier != TierCoding {
		t.Errorf("ModelTier = %s, want coding after tool output shows code", turn.ModelTier)
	}
}

func TestTierIgnoresOldUserMessagesOnLaterRounds(t *testing.T) {
	stage := newTierStage(slog.Default())
	incoming := userMessage("refactor utils.go please")
	turn := newTestTurn(incoming, 5)
	turn.Round = 1
	// No new material since the user spoke; their message itself is
	// never inspected.
	if err := stage.Process(context.Background(), turn); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if turn.ModelTier != TierStandard {
		t.Errorf("ModelTier = %s, want standard", turn.ModelTier)
	}
}
