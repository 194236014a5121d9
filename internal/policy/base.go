package policy

import (
	"context"

	"github.com/gofrs/uuid"

	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/model"
)

// networksForInstance applies the instance-type network-selection filter
// before any allocation work starts: a restricted instance type only ever
// sees its allowed subset of req.Networks, an unrestricted one (the
// default) sees every network unchanged.
func networksForInstance(ctx context.Context, e *engine.Engine, req AllocateRequest) ([]*model.Network, error) {
	it, err := e.Store.InstanceTypeGetByID(ctx, req.Instance.InstanceTypeID)
	if err != nil {
		return nil, err
	}
	return engine.FilterNetworksForInstanceType(it, req.Networks), nil
}

// allocateVIFs creates one VIF per network before any fixed-IP claim
// proceeds, regardless of which variant calls it.
func allocateVIFs(ctx context.Context, e *engine.Engine, instanceID uuid.UUID, networks []*model.Network) error {
	ids := make([]uuid.UUID, len(networks))
	for i, n := range networks {
		ids[i] = n.ID
	}
	_, err := e.AllocateVIFs(ctx, instanceID, ids)
	return err
}

// deleteVIFs implements the last phase of deallocate_for_instance.
func deleteVIFs(ctx context.Context, e *engine.Engine, instanceID uuid.UUID) error {
	return e.Store.VirtualInterfaceDeleteByInstance(ctx, instanceID)
}
