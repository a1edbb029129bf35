package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meganet/portal/internal/flows"
)

// handleFlowStart returns the entry step of a question's flow.
func (s *Server) handleFlowStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questionID, ok := requireID(request, "question_id")
	if !ok {
		return mcp.NewToolResultError("missing required parameter: question_id"), nil
	}

	step, err := s.engine.Start(ctx, questionID)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatStep(step)), nil
}

// handleFlowNext advances one step.
func (s *Server) handleFlowNext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepID, ok := requireID(request, "step_id")
	if !ok {
		return mcp.NewToolResultError("missing required parameter: step_id"), nil
	}
	choice, err := request.RequireString("choice")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: choice"), nil
	}

	res, err := s.engine.Next(ctx, stepID, choice)
	if err != nil {
		return toolError(err), nil
	}
	if res.End {
		return mcp.NewToolResultText(fmt.Sprintf(
			"The flow ends here. Answering %q at step %d leads nowhere further.\n\n%s",
			strings.ToLower(strings.TrimSpace(choice)), res.Step.StepID, formatStep(res.Step),
		)), nil
	}
	return mcp.NewToolResultText(formatStep(res.Step)), nil
}

// handleFlowSteps lists all steps of a question.
func (s *Server) handleFlowSteps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questionID, ok := requireID(request, "question_id")
	if !ok {
		return mcp.NewToolResultError("missing required parameter: question_id"), nil
	}

	steps, err := s.flows.List(ctx, questionID)
	if err != nil {
		return toolError(err), nil
	}
	if len(steps) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Question %d has no guided flow.", questionID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Guided flow for question %d\n\n", questionID)
	for i := range steps {
		b.WriteString(formatStep(&steps[i]))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleFlowReport summarizes structural problems in a question's flow.
func (s *Server) handleFlowReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	questionID, ok := requireID(request, "question_id")
	if !ok {
		return mcp.NewToolResultError("missing required parameter: question_id"), nil
	}

	rep, err := s.flows.Report(ctx, questionID)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatReport(rep)), nil
}

func formatStep(st *flows.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Step %d\n\n%s\n\n", st.StepID, st.StepText)
	fmt.Fprintf(&b, "- yes: %s\n", formatTarget(st.YesNextStep))
	fmt.Fprintf(&b, "- no: %s\n", formatTarget(st.NoNextStep))
	if st.IsFinal {
		b.WriteString("- marked final\n")
	}
	return b.String()
}

func formatTarget(t *int64) string {
	if t == nil {
		return "end of flow"
	}
	return fmt.Sprintf("step %d", *t)
}

func formatReport(rep *flows.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Flow report for question %d\n\n", rep.QuestionID)
	if rep.StartStepID == nil {
		b.WriteString("No steps defined.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Start step: %d\nSteps: %d\n", *rep.StartStepID, rep.StepCount)

	if len(rep.Cycles) == 0 && len(rep.Dangling) == 0 && len(rep.Unreachable) == 0 && len(rep.FinalWithSuccessors) == 0 {
		b.WriteString("\nNo problems found.\n")
		return b.String()
	}
	if len(rep.Cycles) > 0 {
		b.WriteString("\n## Cycles\n")
		for _, c := range rep.Cycles {
			fmt.Fprintf(&b, "- %v\n", c)
		}
	}
	if len(rep.Dangling) > 0 {
		b.WriteString("\n## Dangling branches\n")
		for _, d := range rep.Dangling {
			fmt.Fprintf(&b, "- step %d %s -> missing step %d\n", d.StepID, d.Branch, d.Target)
		}
	}
	if len(rep.Unreachable) > 0 {
		fmt.Fprintf(&b, "\n## Unreachable steps\n- %v\n", rep.Unreachable)
	}
	if len(rep.FinalWithSuccessors) > 0 {
		fmt.Fprintf(&b, "\n## Final steps with successors\n- %v\n", rep.FinalWithSuccessors)
	}
	return b.String()
}

// requireID reads a positive integer argument.
func requireID(request mcp.CallToolRequest, key string) (int64, bool) {
	id := request.GetInt(key, 0)
	return int64(id), id > 0
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, flows.ErrNotFound) || errors.Is(err, flows.ErrValidation) {
		return mcp.NewToolResultError(flows.ErrorMessage(err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("flow lookup failed: %v", err))
}
