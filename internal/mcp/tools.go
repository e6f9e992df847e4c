package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/timeshift/internal/dates"
	"github.com/nvandessel/timeshift/internal/sanitize"
	"github.com/nvandessel/timeshift/internal/validate"
	"github.com/nvandessel/timeshift/internal/variant"
)

type shiftTextInput struct {
	Text       string `json:"text"                jsonschema:"Text containing date literals"`
	OffsetDays int    `json:"offset_days"         jsonschema:"Signed number of days to shift by"`
	BaseYear   int    `json:"base_year,omitempty" jsonschema:"Year assumed for dates written without one (default from config)"`
}

type shiftTextOutput struct {
	Text      string           `json:"text"`
	SoftFails []dates.SoftFail `json:"soft_fails,omitempty"`
}

type listVariantsInput struct{}

type validateVariantInput struct {
	OffsetDays int `json:"offset_days" jsonschema:"Offset of the variant to validate"`
}

type generateVariantInput struct {
	OffsetDays int  `json:"offset_days"     jsonschema:"Signed number of days to shift by"`
	Force      bool `json:"force,omitempty" jsonschema:"Replace the variant if it already exists"`
}

func (s *Server) handleShiftText(ctx context.Context, req *mcp.CallToolRequest, in shiftTextInput) (*mcp.CallToolResult, any, error) {
	baseYear := in.BaseYear
	if baseYear == 0 {
		baseYear = s.cfg.BaseYear
	}
	sh := dates.NewShifter(dates.OffsetSpec{Days: in.OffsetDays, BaseYear: baseYear})
	out := shiftTextOutput{Text: sh.Text(sanitize.Text(in.Text)), SoftFails: sh.SoftFails()}
	res, err := jsonResult(out)
	return res, nil, err
}

func (s *Server) handleListVariants(ctx context.Context, req *mcp.CallToolRequest, in listVariantsInput) (*mcp.CallToolResult, any, error) {
	infos, err := variant.List(s.cfg.DataRoot, s.cfg.SourceDomain)
	if err != nil {
		return nil, nil, err
	}
	if len(infos) == 0 {
		return textResult(fmt.Sprintf("No variants of %s have been generated.", s.cfg.SourceDomain)), nil, nil
	}
	res, err := jsonResult(infos)
	return res, nil, err
}

func (s *Server) handleValidateVariant(ctx context.Context, req *mcp.CallToolRequest, in validateVariantInput) (*mcp.CallToolResult, any, error) {
	dir := variant.Dir(s.cfg.DataRoot, variant.Name(s.cfg.SourceDomain, in.OffsetDays))
	result := validate.Dir(dir, validate.Options{
		OffsetDays:        in.OffsetDays,
		BaseYear:          s.cfg.BaseYear,
		BaseCurrentTime:   s.cfg.CurrentTime,
		FlightDateMinYear: s.cfg.FlightDateMinYear,
	})
	res, err := jsonResult(result)
	return res, nil, err
}

func (s *Server) handleGenerateVariant(ctx context.Context, req *mcp.CallToolRequest, in generateVariantInput) (*mcp.CallToolResult, any, error) {
	g := &variant.Generator{DataRoot: s.cfg.DataRoot, Domain: s.cfg.SourceDomain, BaseYear: s.cfg.BaseYear}
	result, err := g.Generate(in.OffsetDays, in.Force)
	if err != nil {
		return nil, nil, err
	}
	res, err := jsonResult(result)
	return res, nil, err
}
