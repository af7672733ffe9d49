package api

import (
	"context"
	"fmt"

	"github.com/calaix/esmena/pkg/engine"
	"github.com/calaix/esmena/pkg/glossary"
	"github.com/calaix/esmena/pkg/kit"
)

// Shared request/response types used by both HTTP and MCP transports.

const maxSearchCandidates = 100

type vectorizeReq struct {
	Glossary []glossary.Submission
}

type detectReq struct {
	Text          string
	ContextWindow int
}

type searchReq struct {
	Candidates []string
	TopK       int
	Threshold  float32
}

type searchResponse struct {
	Results []engine.Result `json:"results"`
}

// Endpoints returns the core kit.Endpoints backed by the engine.

func vectorizeEndpoint(eng *engine.Engine) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*vectorizeReq)
		return eng.Rebuild(ctx, req.Glossary)
	}
}

func detectEndpoint(eng *engine.Engine) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*detectReq)
		if req.Text == "" {
			return nil, fmt.Errorf("text is empty")
		}
		return eng.DetectCandidates(ctx, req.Text, req.ContextWindow)
	}
}

func searchEndpoint(eng *engine.Engine) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*searchReq)
		if len(req.Candidates) == 0 {
			return nil, fmt.Errorf("candidates array is empty")
		}
		if len(req.Candidates) > maxSearchCandidates {
			return nil, fmt.Errorf("too many candidates (max %d, got %d)", maxSearchCandidates, len(req.Candidates))
		}
		results, err := eng.Search(ctx, req.Candidates, req.TopK, req.Threshold)
		if err != nil {
			return nil, err
		}
		return searchResponse{Results: results}, nil
	}
}

func statusEndpoint(eng *engine.Engine) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return eng.Status(), nil
	}
}
