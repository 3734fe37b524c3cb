package fake

import (
	"context"

	"github.com/BearBump/KickSync/internal/integrations/identity"
)

// FakeClient отдаёт фиксированные franchise/region для локального запуска без identity-сервиса.
// Пустой id означает "ничего не найдено".
type FakeClient struct {
	FranchiseID string
	RegionID    string
}

func New(franchiseID, regionID string) *FakeClient {
	return &FakeClient{FranchiseID: franchiseID, RegionID: regionID}
}

func (f *FakeClient) SearchFranchises(ctx context.Context, take int, search string) ([]identity.Franchise, error) {
	if f.FranchiseID == "" || take <= 0 {
		return nil, nil
	}
	return []identity.Franchise{{FranchiseID: f.FranchiseID, Name: search}}, nil
}

func (f *FakeClient) SearchRegions(ctx context.Context, take int, search string) ([]identity.Region, error) {
	if f.RegionID == "" || take <= 0 {
		return nil, nil
	}
	return []identity.Region{{RegionID: f.RegionID, Name: search}}, nil
}
