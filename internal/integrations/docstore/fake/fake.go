package fake

import (
	"context"
	"encoding/json"
	"os"

	"github.com/BearBump/KickSync/internal/integrations/docstore"
	"github.com/BearBump/KickSync/internal/models"
	"github.com/pkg/errors"
)

// FakeSource отдаёт заранее заданный снапшот. Используется для локального запуска и в тестах.
type FakeSource struct {
	Docs []models.SourceKickboard
	Err  error
}

var _ docstore.Source = (*FakeSource)(nil)

func New(docs ...models.SourceKickboard) *FakeSource {
	return &FakeSource{Docs: docs}
}

type fileDoc struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	CanRide bool   `json:"can_ride"`
	Deploy  bool   `json:"deploy"`
}

// FromFile reads a JSON array of {"id","code","can_ride","deploy"} documents.
func FromFile(path string) (*FakeSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot file")
	}
	var raw []fileDoc
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "decode snapshot file")
	}
	docs := make([]models.SourceKickboard, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, models.SourceKickboard{
			KickboardID:   d.ID,
			KickboardCode: d.Code,
			CanRide:       d.CanRide,
			Deploy:        d.Deploy,
		})
	}
	return New(docs...), nil
}

func (f *FakeSource) ListKickboards(ctx context.Context) ([]models.SourceKickboard, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]models.SourceKickboard, len(f.Docs))
	copy(out, f.Docs)
	return out, nil
}
