package providers

import (
	"go.uber.org/fx"

	"github.com/lukasai/lukas/internal/providers/pdf"
)

var Module = fx.Module("providers",
	pdf.Module,
)
