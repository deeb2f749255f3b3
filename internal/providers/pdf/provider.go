package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	GenerateUsageSummary(ctx context.Context, data SummaryData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateUsageSummary(ctx context.Context, data SummaryData) (io.Reader, error) {
	return nil, nil
}
