package kbErrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse      = errors.New("parse error")
	ErrEmbedding  = errors.New("embedding error")
	ErrIndex      = errors.New("index error")
	ErrNotFound   = errors.New("not found")
	ErrRetrieval  = errors.New("retrieval error")
	ErrGeneration = errors.New("generation error")
)

// ParseError means no extraction strategy could read the document.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}
func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// EmbeddingError carries the input indices whose batches failed after retries.
type EmbeddingError struct {
	BatchIndices []int
	Err          error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for %d inputs %s: %v", len(e.BatchIndices), compactIndices(e.BatchIndices), e.Err)
}
func (e *EmbeddingError) Unwrap() error        { return e.Err }
func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// IndexError is an artifact write, swap or read failure.
type IndexError struct {
	KnowledgeBaseId string
	Op              string
	Err             error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s %s: %v", e.Op, e.KnowledgeBaseId, e.Err)
}
func (e *IndexError) Unwrap() error        { return e.Err }
func (e *IndexError) Is(target error) bool { return target == ErrIndex }

type NotFoundError struct {
	Kind string
	Id   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Id)
}
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type RetrievalError struct {
	KnowledgeBaseId string
	Err             error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval on %s: %v", e.KnowledgeBaseId, e.Err)
}
func (e *RetrievalError) Unwrap() error        { return e.Err }
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation via %s: %v", e.Provider, e.Err)
}
func (e *GenerationError) Unwrap() error        { return e.Err }
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

func KnowledgeBaseNotFound(kbId string) error {
	return &NotFoundError{Kind: "knowledge base", Id: kbId}
}

// Kind names the error family for build summaries and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "ParseError"
	case errors.Is(err, ErrEmbedding):
		return "EmbeddingError"
	case errors.Is(err, ErrIndex):
		return "IndexError"
	case errors.Is(err, ErrNotFound):
		return "NotFoundError"
	case errors.Is(err, ErrRetrieval):
		return "RetrievalError"
	case errors.Is(err, ErrGeneration):
		return "GenerationError"
	default:
		return "Error"
	}
}

// compactIndices prints [0-3,7,9-10].
func compactIndices(idx []int) string {
	if len(idx) == 0 {
		return "[]"
	}
	var parts []string
	start, prev := idx[0], idx[0]
	flush := func() {
		if start == prev {
			parts = append(parts, fmt.Sprint(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, i := range idx[1:] {
		if i == prev+1 {
			prev = i
			continue
		}
		flush()
		start, prev = i, i
	}
	flush()
	return "[" + strings.Join(parts, ",") + "]"
}
