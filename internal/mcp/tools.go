package mcp

import "github.com/mark3labs/mcp-go/mcp"

// flowStartTool defines the flow_start MCP tool.
var flowStartTool = mcp.NewTool("flow_start",
	mcp.WithDescription("Begin the guided troubleshooting flow of a chatbox question. Returns the first yes/no step."),
	mcp.WithNumber("question_id",
		mcp.Required(),
		mcp.Description("Id of the chatbox question"),
	),
)

// flowNextTool defines the flow_next MCP tool.
var flowNextTool = mcp.NewTool("flow_next",
	mcp.WithDescription("Answer the current step of a guided flow and get the next step, or learn that the flow has ended."),
	mcp.WithNumber("step_id",
		mcp.Required(),
		mcp.Description("Id of the step currently shown"),
	),
	mcp.WithString("choice",
		mcp.Required(),
		mcp.Description("Answer to the current step"),
		mcp.Enum("yes", "no"),
	),
)

// flowStepsTool defines the flow_steps MCP tool.
var flowStepsTool = mcp.NewTool("flow_steps",
	mcp.WithDescription("List every step of a question's guided flow with its yes/no branches."),
	mcp.WithNumber("question_id",
		mcp.Required(),
		mcp.Description("Id of the chatbox question"),
	),
)

// flowReportTool defines the flow_report MCP tool.
var flowReportTool = mcp.NewTool("flow_report",
	mcp.WithDescription("Check a question's guided flow for cycles, dangling branches and unreachable steps."),
	mcp.WithNumber("question_id",
		mcp.Required(),
		mcp.Description("Id of the chatbox question"),
	),
)
