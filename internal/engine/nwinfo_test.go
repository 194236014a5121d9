package engine_test

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/engine"
	"nethost.io/nethost/internal/model"
)

func TestFilterNetworksForInstanceTypePassesThroughByDefault(t *testing.T) {
	networks := []*model.Network{{ID: uuid.Must(uuid.NewV4())}, {ID: uuid.Must(uuid.NewV4())}}

	require.Equal(t, networks, engine.FilterNetworksForInstanceType(nil, networks))
	require.Equal(t, networks, engine.FilterNetworksForInstanceType(&model.InstanceType{}, networks))
}

func TestFilterNetworksForInstanceTypeRestrictsToAllowedSet(t *testing.T) {
	allowed := &model.Network{ID: uuid.Must(uuid.NewV4())}
	other := &model.Network{ID: uuid.Must(uuid.NewV4())}
	it := &model.InstanceType{NetworkIDs: []uuid.UUID{allowed.ID}}

	filtered := engine.FilterNetworksForInstanceType(it, []*model.Network{allowed, other})
	require.Equal(t, []*model.Network{allowed}, filtered)
}
