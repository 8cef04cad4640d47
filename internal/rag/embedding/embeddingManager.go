package embedding

import "context"

// Provider is one embedding backend. EmbedBatch must return one vector per input, in input order.
type Provider interface {
	Name() string
	MaxBatch() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder is what the ingest pipeline and the answer service consume.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type ProviderFunc struct {
	ProviderName string
	Batch        int
	OnEmbed      func(ctx context.Context, texts []string) ([][]float32, error)
}

func (p ProviderFunc) Name() string  { return p.ProviderName }
func (p ProviderFunc) MaxBatch() int { return p.Batch }
func (p ProviderFunc) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.OnEmbed(ctx, texts)
}
