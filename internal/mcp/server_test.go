package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meganet/portal/internal/authz"
	"github.com/meganet/portal/internal/db"
	"github.com/meganet/portal/internal/flows"
)

var admin = authz.Caller{UserID: "1", RoleID: "1"}

// newTestServer builds a server over question 42 with steps
// 1 "Is it on?" (yes -> 2) and 2 "Call support." (final).
func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := flows.NewStore(database)
	svc := flows.NewService(store, authz.NewPolicy("1"), nil)
	ctx := context.Background()

	a, _, err := svc.Create(ctx, admin, flows.StepInput{QuestionID: 42, StepText: "Is it on?"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, _, err := svc.Create(ctx, admin, flows.StepInput{QuestionID: 42, StepText: "Call support.", IsFinal: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := svc.Update(ctx, admin, a.StepID, flows.StepInput{StepText: "Is it on?", YesNextStep: &b.StepID}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	return NewServer(svc, flows.NewEngine(store))
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"flow_start", flowStartTool, "flow_start"},
		{"flow_next", flowNextTool, "flow_next"},
		{"flow_steps", flowStepsTool, "flow_steps"},
		{"flow_report", flowReportTool, "flow_report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv := newTestServer(t)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
}

func TestHandleFlowStart(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleFlowStart(ctx, callRequest(map[string]any{"question_id": float64(42)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
	if text := resultText(t, result); !strings.Contains(text, "Step 1") || !strings.Contains(text, "yes: step 2") {
		t.Errorf("text = %q", text)
	}

	result, _ = srv.handleFlowStart(ctx, callRequest(map[string]any{"question_id": float64(7)}))
	if !result.IsError {
		t.Error("expected error for question without a flow")
	}

	result, _ = srv.handleFlowStart(ctx, callRequest(map[string]any{}))
	if !result.IsError {
		t.Error("expected error for missing question_id")
	}
}

func TestHandleFlowNext(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("advance", func(t *testing.T) {
		result, err := srv.handleFlowNext(ctx, callRequest(map[string]any{"step_id": float64(1), "choice": "yes"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text := resultText(t, result); !strings.Contains(text, "Step 2") || strings.Contains(text, "ends here") {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("end of flow", func(t *testing.T) {
		result, _ := srv.handleFlowNext(ctx, callRequest(map[string]any{"step_id": float64(1), "choice": "no"}))
		if text := resultText(t, result); !strings.Contains(text, "ends here") {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("invalid choice", func(t *testing.T) {
		result, _ := srv.handleFlowNext(ctx, callRequest(map[string]any{"step_id": float64(1), "choice": "maybe"}))
		if !result.IsError {
			t.Error("expected error for invalid choice")
		}
	})

	t.Run("missing step", func(t *testing.T) {
		result, _ := srv.handleFlowNext(ctx, callRequest(map[string]any{"step_id": float64(99), "choice": "yes"}))
		if !result.IsError {
			t.Error("expected error for missing step")
		}
	})
}

func TestHandleFlowStepsAndReport(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleFlowSteps(ctx, callRequest(map[string]any{"question_id": float64(42)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Step 1") || !strings.Contains(text, "Step 2") || !strings.Contains(text, "marked final") {
		t.Errorf("steps text = %q", text)
	}

	result, _ = srv.handleFlowSteps(ctx, callRequest(map[string]any{"question_id": float64(5)}))
	if text := resultText(t, result); !strings.Contains(text, "no guided flow") {
		t.Errorf("empty steps text = %q", text)
	}

	result, err = srv.handleFlowReport(ctx, callRequest(map[string]any{"question_id": float64(42)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "No problems found") {
		t.Errorf("report text = %q", text)
	}
}
