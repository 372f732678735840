package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lingowing/lingowing/answerkey"
	"github.com/lingowing/lingowing/assist"
	"github.com/lingowing/lingowing/autopilot"
	"github.com/lingowing/lingowing/models"
	"github.com/lingowing/lingowing/pkg/logger"
	"github.com/lingowing/lingowing/storage"
)

const (
	ToolStatus   = "autopilot_status"
	ToolToggle   = "autopilot_toggle"
	ToolAnswers  = "exercise_answers"
	ToolAnalyze  = "analyze_question"
	endpointPath = "/api/v1/mcp"
)

// Autopilot 答题控制器
type Autopilot interface {
	SetEnabled(enabled bool)
	Status() autopilot.Status
	Exercise() *models.ExerciseSet
}

// PageTracker 当前页面地址与阶段
type PageTracker interface {
	CurrentURL() string
	PageState(url string) string
}

// PreferenceStore 保存开关
type PreferenceStore interface {
	SetPreference(key string, enabled bool) error
}

// Advisor 开放题答案建议
type Advisor interface {
	Analyze(ctx context.Context, q assist.Question) (*assist.Suggestion, error)
}

type toolHandler func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)

// MCPServer 以 MCP 工具的形式提供自动答题的状态、开关和答案
type MCPServer struct {
	autopilot Autopilot
	pages     PageTracker
	prefs     PreferenceStore
	advisor   Advisor
	renderer  *answerkey.Renderer

	mcpServer            *server.MCPServer
	streamableHTTPServer *server.StreamableHTTPServer
	handlers             map[string]toolHandler
}

// NewMCPServer 创建 MCP 服务器并注册全部工具；advisor 为 nil 时不注册分析工具
func NewMCPServer(ap Autopilot, pages PageTracker, prefs PreferenceStore, advisor Advisor) *MCPServer {
	s := &MCPServer{
		autopilot: ap,
		pages:     pages,
		prefs:     prefs,
		advisor:   advisor,
		renderer:  answerkey.NewRenderer(),
		handlers:  make(map[string]toolHandler),
	}

	s.mcpServer = server.NewMCPServer(
		"lingowing",
		"0.1.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	s.streamableHTTPServer = server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath(endpointPath),
	)
	return s
}

// EndpointPath Streamable HTTP 的挂载路径
func (s *MCPServer) EndpointPath() string {
	return endpointPath
}

func (s *MCPServer) registerTools() {
	s.register(mcpgo.NewTool(ToolStatus,
		mcpgo.WithDescription("Report whether the autopilot is enabled, its flow state and the loaded exercise"),
	), s.handleStatus)

	s.register(mcpgo.NewTool(ToolToggle,
		mcpgo.WithDescription("Enable or disable the autopilot; the choice is persisted"),
		mcpgo.WithBoolean("enabled", mcpgo.Required(), mcpgo.Description("true to enable")),
	), s.handleToggle)

	s.register(mcpgo.NewTool(ToolAnswers,
		mcpgo.WithDescription("List the correct answers of the current exercise"),
	), s.handleAnswers)

	if s.advisor != nil {
		s.register(mcpgo.NewTool(ToolAnalyze,
			mcpgo.WithDescription("Ask the language model for the answer to a question of the current exercise"),
			mcpgo.WithNumber("index", mcpgo.Required(), mcpgo.Description("zero-based question index")),
		), s.handleAnalyze)
	}
}

func (s *MCPServer) register(tool mcpgo.Tool, h toolHandler) {
	s.handlers[tool.Name] = h
	s.mcpServer.AddTool(tool, server.ToolHandlerFunc(h))
}

// Tools 已注册的工具名
func (s *MCPServer) Tools() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

func (s *MCPServer) handleStatus(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return jsonResult(s.autopilot.Status())
}

func (s *MCPServer) handleToggle(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := request.GetArguments()
	enabled, ok := args["enabled"].(bool)
	if !ok {
		return mcpgo.NewToolResultError("enabled must be a boolean"), nil
	}
	if err := s.prefs.SetPreference(storage.PrefAutopilot, enabled); err != nil {
		return mcpgo.NewToolResultError(fmt.Sprintf("Failed to save preference: %v", err)), nil
	}
	s.autopilot.SetEnabled(enabled)
	logger.Info(ctx, "Autopilot toggled over MCP: %v", enabled)
	return mcpgo.NewToolResultText(fmt.Sprintf("autopilot enabled: %v", enabled)), nil
}

func (s *MCPServer) handleAnswers(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	state := s.pages.PageState(s.pages.CurrentURL())
	return jsonResult(s.renderer.Build(s.autopilot.Exercise(), state))
}

func (s *MCPServer) handleAnalyze(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	raw, ok := request.GetArguments()["index"].(float64)
	if !ok {
		return mcpgo.NewToolResultError("index must be a number"), nil
	}
	items := s.autopilot.Exercise().Items()
	idx := int(raw)
	if idx < 0 || idx >= len(items) {
		return mcpgo.NewToolResultError(fmt.Sprintf("question %d not found", idx)), nil
	}

	suggestion, err := s.advisor.Analyze(ctx, assist.FromItem(&items[idx]))
	if errors.Is(err, assist.ErrDuplicateQuestion) {
		return mcpgo.NewToolResultText("question already analyzed"), nil
	}
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(suggestion)
}

// CallTool 直接调用工具
func (s *MCPServer) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcpgo.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("command not found: %s", name)
	}
	var request mcpgo.CallToolRequest
	request.Params.Name = name
	request.Params.Arguments = arguments
	return h(ctx, request)
}

// ServeHTTP 处理 Streamable HTTP 请求
func (s *MCPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger.Debug(r.Context(), "MCP request: Method=%s, Path=%s", r.Method, r.URL.Path)
	s.streamableHTTPServer.ServeHTTP(w, r)
}

func jsonResult(v interface{}) (*mcpgo.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcpgo.NewToolResultText(string(data)), nil
}
