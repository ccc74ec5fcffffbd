package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mohammed-elhaj/hr-bot/internal/answer"
	"github.com/mohammed-elhaj/hr-bot/internal/ticket"
	"github.com/mohammed-elhaj/hr-bot/internal/vacation"
)

// MCPAnswerer abstracts policy answering for the MCP layer.
type MCPAnswerer interface {
	Answer(ctx context.Context, question string, collectionIDs []string) (answer.Result, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Policy  MCPAnswerer
	Ledger  *vacation.Ledger
	Tickets *ticket.Registry
}

// NewMCPServer creates an MCP server exposing the HR tools over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"hr-bot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("HR assistant backend: policy search, vacation balances, vacation requests, and support tickets."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("policy_query",
			mcp.WithDescription("Answer a question about HR policy using the indexed policy documents."),
			mcp.WithString("question", mcp.Description("The policy question, in Arabic"), mcp.Required()),
		),
		mcpPolicyQuery(deps),
	)

	s.AddTool(
		mcp.NewTool("check_vacation_balance",
			mcp.WithDescription("Look up an employee's vacation balance."),
			mcp.WithString("employee_id", mcp.Description("Numeric employee ID"), mcp.Required()),
		),
		mcpCheckBalance(deps),
	)

	s.AddTool(
		mcp.NewTool("create_vacation_request",
			mcp.WithDescription("File a vacation request ticket for an employee."),
			mcp.WithString("employee_id", mcp.Description("Numeric employee ID"), mcp.Required()),
			mcp.WithString("start_date", mcp.Description("Start date, YYYY-MM-DD"), mcp.Required()),
			mcp.WithString("end_date", mcp.Description("End date, YYYY-MM-DD"), mcp.Required()),
			mcp.WithString("request_type", mcp.Description("Request type, e.g. سنوية / مرضية / طارئة"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("Optional notes")),
		),
		mcpCreateVacationRequest(deps),
	)

	s.AddTool(
		mcp.NewTool("create_support_ticket",
			mcp.WithDescription("Open a support ticket for an employee."),
			mcp.WithString("employee_id", mcp.Description("Numeric employee ID"), mcp.Required()),
			mcp.WithString("summary", mcp.Description("Short issue summary"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Detailed issue description"), mcp.Required()),
		),
		mcpCreateSupportTicket(deps),
	)

	s.AddTool(
		mcp.NewTool("list_employee_tickets",
			mcp.WithDescription("List all vacation request tickets filed by an employee."),
			mcp.WithString("employee_id", mcp.Description("Numeric employee ID"), mcp.Required()),
		),
		mcpListEmployeeTickets(deps),
	)

	return s
}

func mcpPolicyQuery(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		result, err := deps.Policy.Answer(ctx, question, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("policy query failed: %v", err)), nil
		}
		return mcpText(result.Answer), nil
	}
}

func mcpCheckBalance(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := req.RequireString("employee_id")
		if err != nil {
			return mcpError("employee_id is required"), nil
		}

		account, err := deps.Ledger.CheckBalance(employeeID)
		if errors.Is(err, vacation.ErrNotFound) {
			return mcpError(fmt.Sprintf("employee %s not found", employeeID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("balance lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(account)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal account: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCreateVacationRequest(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := req.RequireString("employee_id")
		if err != nil {
			return mcpError("employee_id is required"), nil
		}
		startDate, err := req.RequireString("start_date")
		if err != nil {
			return mcpError("start_date is required"), nil
		}
		endDate, err := req.RequireString("end_date")
		if err != nil {
			return mcpError("end_date is required"), nil
		}
		requestType, err := req.RequireString("request_type")
		if err != nil {
			return mcpError("request_type is required"), nil
		}
		notes := req.GetString("notes", "")

		t, err := deps.Tickets.CreateVacationTicket(employeeID, startDate, endDate, requestType, notes)
		if errors.Is(err, ticket.ErrBadDate) {
			return mcpError("dates must be YYYY-MM-DD"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create ticket: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Created vacation ticket %s", t.TicketID)), nil
	}
}

func mcpCreateSupportTicket(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := req.RequireString("employee_id")
		if err != nil {
			return mcpError("employee_id is required"), nil
		}
		summary, err := req.RequireString("summary")
		if err != nil {
			return mcpError("summary is required"), nil
		}
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}

		t, err := deps.Tickets.CreateSupportTicket(employeeID, summary, description)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create support ticket: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Created support ticket %s", t.TicketID)), nil
	}
}

func mcpListEmployeeTickets(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		employeeID, err := req.RequireString("employee_id")
		if err != nil {
			return mcpError("employee_id is required"), nil
		}

		tickets, err := deps.Tickets.EmployeeTickets(employeeID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list tickets: %v", err)), nil
		}
		if len(tickets) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(tickets)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal tickets: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
