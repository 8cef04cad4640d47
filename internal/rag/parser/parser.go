package parser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

// ErrStrategyUnavailable is returned by a strategy whose capability check fails for a document.
var ErrStrategyUnavailable = errors.New("strategy unavailable for document")

var errNoText = errors.New("no extractable text")

// Strategy turns raw PDF bytes into structural nodes.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, doc commonModels.Document) ([]commonModels.StructuralNode, error)
}

type Result struct {
	Nodes    []commonModels.StructuralNode
	Strategy string
	Pages    int
}

// Parser tries its strategies in order and keeps the first usable output.
type Parser struct {
	strategies []Strategy
	logger     *logger_i.Logger
}

func New(strategies ...Strategy) *Parser {
	return &Parser{
		strategies: strategies,
		logger:     logger_i.NewLogger("Parser"),
	}
}

// NewDefault is structural first, flat text second.
func NewDefault() *Parser {
	return New(NewStructuralStrategy(), NewFlatTextStrategy())
}

func (p *Parser) Parse(ctx context.Context, doc commonModels.Document) (Result, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("parse", time.Since(start)) }()

	log := p.logger.FromContext(ctx).With("document", doc.Filename)

	var causes []error
	for _, strategy := range p.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		nodes, err := strategy.Extract(ctx, doc)
		if err == nil && !hasText(nodes) {
			err = errNoText
		}
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			log.Warn("strategy failed, falling back", "strategy", strategy.Name(), "error", err)
			causes = append(causes, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}
		log.Debug("document parsed", "strategy", strategy.Name(), "nodes", len(nodes))
		return Result{Nodes: nodes, Strategy: strategy.Name(), Pages: pageCount(nodes)}, nil
	}

	if len(causes) == 0 {
		causes = append(causes, errors.New("no parser strategies configured"))
	}
	return Result{}, &kbErrors.ParseError{Source: doc.Filename, Err: errors.Join(causes...)}
}

func hasText(nodes []commonModels.StructuralNode) bool {
	for _, n := range nodes {
		if n.Kind != commonModels.NodeHeading && n.Text != "" {
			return true
		}
	}
	return false
}

func pageCount(nodes []commonModels.StructuralNode) int {
	seen := make(map[int]struct{})
	for _, n := range nodes {
		seen[n.Page] = struct{}{}
	}
	return len(seen)
}
