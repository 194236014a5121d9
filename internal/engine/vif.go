package engine

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/gofrs/uuid"

	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/server/metrics"
)

// generateMAC produces a locally-administered, unicast MAC of the form
// 02:16:3e:XX:XX:XX: the low 24 bits are uniformly random.
func generateMAC() (string, error) {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating mac entropy: %w", err)
	}
	mac := fmt.Sprintf("02:16:3e:%02x:%02x:%02x", b[0], b[1], b[2])
	if !model.MACPattern.MatchString(mac) {
		return "", fmt.Errorf("generated mac %q does not match the expected pattern", mac)
	}
	return mac, nil
}

// AllocateVIFs creates one VirtualInterface per network in networkIDs for
// instanceID, retrying MAC generation on a unique-constraint collision up
// to Options.CreateUniqueMACAddressAttempts times. On exhaustion for any
// network, every VIF created in this call is rolled back and the call
// fails with errs.KindConflict.
func (e *Engine) AllocateVIFs(ctx context.Context, instanceID uuid.UUID, networkIDs []uuid.UUID) ([]*model.VirtualInterface, error) {
	var created []*model.VirtualInterface

	for _, networkID := range networkIDs {
		vif, err := e.allocateOneVIF(ctx, instanceID, networkID)
		if err != nil {
			// Roll back every VIF created for this instance in this
			// call, including ones for networks earlier in the loop.
			_ = e.Store.VirtualInterfaceDeleteByInstance(ctx, instanceID)
			return nil, err
		}
		created = append(created, vif)
	}
	return created, nil
}

func (e *Engine) allocateOneVIF(ctx context.Context, instanceID, networkID uuid.UUID) (*model.VirtualInterface, error) {
	attempts := e.Options.macAttempts()
	var lastErr error
	for i := 0; i < attempts; i++ {
		mac, err := generateMAC()
		if err != nil {
			return nil, err
		}
		vif, err := e.Store.VirtualInterfaceCreate(ctx, instanceID, networkID, mac)
		if err == nil {
			return vif, nil
		}
		if !errs.Is(err, errs.KindConflict) {
			return nil, err
		}
		metrics.RecordMACRetry()
		lastErr = err
	}
	return nil, errs.Wrap(lastErr, errs.KindConflict,
		"exhausted %d mac generation attempts for instance %s on network %s", attempts, instanceID, networkID)
}
