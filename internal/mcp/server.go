// Package mcp exposes date shifting and variant generation, listing and
// validation as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/timeshift/internal/config"
)

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string

	// Root is the project root; ConfigPath overrides root/timeshift.yaml.
	Root       string
	ConfigPath string
}

// Server wraps the SDK server with the experiment configuration.
type Server struct {
	server *mcp.Server
	cfg    *config.Config
	root   string

	mu     sync.Mutex
	closed bool
}

// NewServer loads the experiment config and registers the tools.
func NewServer(cfg *Config) (*Server, error) {
	expCfg, err := config.Open(cfg.Root, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		cfg:    expCfg,
		root:   cfg.Root,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timeshift_shift_text",
		Description: "Shift every date literal in a piece of text by a number of days, keeping each literal's format.",
	}, s.handleShiftText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timeshift_list_variants",
		Description: "List the generated date-shifted variants of the source domain.",
	}, s.handleListVariants)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timeshift_validate_variant",
		Description: "Validate a generated variant: flight dates in tasks, dates of birth, status timestamps and the policy's current time.",
	}, s.handleValidateVariant)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "timeshift_generate_variant",
		Description: "Generate the variant of the source domain shifted by a number of days.",
	}, s.handleGenerateVariant)
}

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("mcp: server is closed")
	}
	slog.Info("mcp: serving", "root", s.root, "domain", s.cfg.SourceDomain)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the server. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return textResult(string(b)), nil
}
