package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/rag"
)

// ToolAskDocuments is the name of the question answering tool.
const ToolAskDocuments = "ask_documents"

type askInput struct {
	Question string `json:"question" jsonschema:"The question to answer from the indexed documents"`
}

type askSource struct {
	Source string  `json:"source" jsonschema:"File the chunk was cut from"`
	Chunk  int     `json:"chunk" jsonschema:"Position of the chunk within its file"`
	Score  float32 `json:"score" jsonschema:"Similarity of the chunk to the question"`
}

type askOutput struct {
	Answer   string      `json:"answer" jsonschema:"Answer grounded in the retrieved chunks"`
	Fallback bool        `json:"fallback" jsonschema:"True when nothing relevant was retrieved"`
	Sources  []askSource `json:"sources" jsonschema:"Retrieved chunks in rank order"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolAskDocuments,
		Description: "Answer a question using only the indexed document corpus. Retrieves the most relevant chunks and returns a short answer, or a fixed message when the documents do not contain it.",
	}, s.handleAsk)
}

func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, askOutput, error) {
	start := time.Now()

	if strings.TrimSpace(args.Question) == "" {
		s.metrics.record(ctx, ToolAskDocuments, start, errorReason(rag.ErrEmptyQuestion))
		return nil, askOutput{}, rag.ErrEmptyQuestion
	}

	answer, err := s.asker.Ask(ctx, args.Question)
	s.metrics.record(ctx, ToolAskDocuments, start, outcomeOf(answer, err))
	if err != nil {
		s.logger.Error("ask_documents failed", zap.Error(err))
		return nil, askOutput{}, fmt.Errorf("answering question: %w", err)
	}

	output := askOutput{
		Answer:   answer.Answer,
		Fallback: answer.Fallback,
		Sources:  make([]askSource, 0, len(answer.Sources)),
	}
	for _, r := range answer.Sources {
		output.Sources = append(output.Sources, askSource{
			Source: r.Metadata.Source,
			Chunk:  r.Metadata.Chunk,
			Score:  r.Score,
		})
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: output.Answer},
		},
	}, output, nil
}
