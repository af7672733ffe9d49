package api

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/calaix/esmena/pkg/engine"
	"github.com/calaix/esmena/pkg/kit"
)

// RegisterMCPTools registers the three esmena MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, eng *engine.Engine) {
	registerDetectCandidates(srv, eng)
	registerSearchTerms(srv, eng)
	registerGlossaryStatus(srv, eng)
}

func registerDetectCandidates(srv *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("detect_candidates",
		mcp.WithDescription("Scan a text for occurrences of known non-recommended terms (single words matched by lemma, multi-word expressions matched longest-first)."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to scan")),
		mcp.WithNumber("context_window", mcp.Description("Tokens of context kept on each side of a match (default 3)")),
	)

	kit.RegisterMCPTool(srv, tool, detectEndpoint(eng), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		text, _ := args["text"].(string)
		window := -1
		if v, ok := args["context_window"].(float64); ok {
			window = int(v)
		}
		return &kit.MCPDecodeResult{Request: &detectReq{Text: text, ContextWindow: window}}, nil
	})
}

func registerSearchTerms(srv *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("search_terms",
		mcp.WithDescription("Find recommended glossary terms similar to the given candidate terms using vector similarity."),
		mcp.WithString("candidates", mcp.Required(), mcp.Description("Comma-separated list of candidate terms")),
		mcp.WithNumber("top_k", mcp.Description("Maximum matches per candidate (default 5)")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity, inclusive (default 0.8)")),
	)

	kit.RegisterMCPTool(srv, tool, searchEndpoint(eng), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		raw, _ := args["candidates"].(string)
		var candidates []string
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				candidates = append(candidates, c)
			}
		}
		r := &searchReq{Candidates: candidates}
		if v, ok := args["top_k"].(float64); ok {
			r.TopK = int(v)
		}
		if v, ok := args["threshold"].(float64); ok {
			r.Threshold = float32(v)
		}
		return &kit.MCPDecodeResult{Request: r}, nil
	})
}

func registerGlossaryStatus(srv *server.MCPServer, eng *engine.Engine) {
	tool := mcp.NewTool("glossary_status",
		mcp.WithDescription("Report engine readiness and glossary sizes (entries, variants, embedding model, lemmatizer)."),
	)

	kit.RegisterMCPTool(srv, tool, statusEndpoint(eng), func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}
