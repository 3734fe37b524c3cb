package identity

import "context"

type Permission string

const (
	PermissionFranchiseList Permission = "franchises.list"
	PermissionRegionList    Permission = "locations.regions.list"
)

type Franchise struct {
	FranchiseID string `json:"franchiseId"`
	Name        string `json:"name"`
}

type Region struct {
	RegionID string `json:"regionId"`
	Name     string `json:"name"`
}

// Client searches the franchise and location services. Every call is
// authorized with a token scoped to just the permission it needs.
type Client interface {
	SearchFranchises(ctx context.Context, take int, search string) ([]Franchise, error)
	SearchRegions(ctx context.Context, take int, search string) ([]Region, error)
}
