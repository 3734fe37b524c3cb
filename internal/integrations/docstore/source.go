package docstore

import (
	"context"

	"github.com/BearBump/KickSync/internal/models"
)

// Source reads the whole fleet inventory snapshot, most recently updated first.
type Source interface {
	ListKickboards(ctx context.Context) ([]models.SourceKickboard, error)
}
