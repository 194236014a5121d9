// Package rpc implements the multi-host fan-out: for an instance
// joining networks possibly owned by different hosts, dispatch
// `_rpc_allocate_fixed_ip` to whichever host actually owns each network and
// wait for every dispatch — local or remote — before returning. Used by
// the FlatDHCP and VLAN policies; Flat never multi-hosts so it calls the
// engine directly and never touches this package.
package rpc

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"

	"nethost.io/nethost/internal/bus"
	"nethost.io/nethost/internal/engine/errs"
	"nethost.io/nethost/internal/model"
	"nethost.io/nethost/internal/server/metrics"
)

// MethodAllocateFixedIP is the Bus method name a remote network-host
// registers a handler under.
const MethodAllocateFixedIP = "_rpc_allocate_fixed_ip"

// LocalAllocator is the engine call the fan-out invokes directly for
// networks owned by this process, and that a registered Bus handler invokes
// on the remote side after re-reading the Network by id. requestedAddress
// is empty unless the caller pinned a specific address for this network
// (the validate_networks path).
type LocalAllocator func(ctx context.Context, instanceID uuid.UUID, network *model.Network, requestedAddress string) (string, error)

// FanOut dispatches fixed-IP claims across the networks an instance is
// joining, routing each to its owning host over Bus and blocking on a
// barrier until every dispatch returns.
type FanOut struct {
	Bus   bus.Bus
	Topic string
	// Self is this process's configured host id — the single source of
	// truth, threaded in rather than re-derived.
	Self string
	// Local runs the actual claim against the engine for networks this
	// process owns, whether the instance's target network or (inside a
	// remote handler) a network whose id a dispatch named.
	Local LocalAllocator
}

// Target is one network an instance is joining, ready for fan-out.
type Target struct {
	Network *model.Network
	// RequestedAddress pins this network's claim to a specific address
	// already validated by engine.ValidateNetworks; empty claims from the
	// free pool as usual.
	RequestedAddress string
}

// Result is the per-network outcome of a fan-out call.
type Result struct {
	NetworkID uuid.UUID
	Address   string
}

// targetHost implements the target-host rule: multi_host networks are
// always served locally; otherwise the claim is routed to the network's
// owning host.
func (f *FanOut) targetHost(network *model.Network) string {
	if network.MultiHost {
		return f.Self
	}
	if network.Host != nil {
		return *network.Host
	}
	return ""
}

// Allocate runs one fixed-IP claim per target concurrently and waits for
// all to complete before returning. A failure on any target surfaces as
// errs.KindPartialAllocation — successful claims made before the failure
// are not rolled back; the caller reconciles via deallocate_for_instance.
func (f *FanOut) Allocate(ctx context.Context, instanceID uuid.UUID, targets []Target) ([]Result, error) {
	start := time.Now()
	results, err := f.allocate(ctx, instanceID, targets)
	metrics.RecordFanOut(time.Since(start), err)
	return results, err
}

func (f *FanOut) allocate(ctx context.Context, instanceID uuid.UUID, targets []Target) ([]Result, error) {
	results := make([]Result, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			host := f.targetHost(target.Network)

			var address string
			var err error
			if host == "" || host == f.Self {
				address, err = f.Local(gctx, instanceID, target.Network, target.RequestedAddress)
			} else {
				address, err = f.callRemote(gctx, host, instanceID, target.Network.ID, target.RequestedAddress)
			}
			if err != nil {
				return err
			}
			results[i] = Result{NetworkID: target.Network.ID, Address: address}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errs.Wrap(err, errs.KindPartialAllocation,
			"fixed ip fan-out for instance %s did not complete for all %d networks", instanceID, len(targets))
	}
	return results, nil
}

func (f *FanOut) callRemote(ctx context.Context, host string, instanceID, networkID uuid.UUID, requestedAddress string) (string, error) {
	resp, err := f.Bus.Call(ctx, f.Topic, host, bus.Request{
		Method: MethodAllocateFixedIP,
		Args: map[string]interface{}{
			"instance_id":       instanceID.String(),
			"network_id":        networkID.String(),
			"requested_address": requestedAddress,
		},
	})
	if err != nil {
		return "", err
	}
	address, _ := resp.Result["address"].(string)
	if address == "" {
		return "", errs.New(errs.KindPartialAllocation, "remote host %s returned no address for network %s", host, networkID)
	}
	return address, nil
}

// RegisterHandler wires a Bus handler for MethodAllocateFixedIP under
// (topic, self), the remote side of fan-out: it resolves the network by
// id and runs the claim locally via allocate, then replies with the
// claimed address.
func RegisterHandler(b bus.Bus, topic, self string, getNetwork func(ctx context.Context, id uuid.UUID) (*model.Network, error), allocate LocalAllocator) {
	b.Register(topic, self, func(ctx context.Context, req bus.Request) (bus.Response, error) {
		instanceIDStr, _ := req.Args["instance_id"].(string)
		networkIDStr, _ := req.Args["network_id"].(string)
		requestedAddress, _ := req.Args["requested_address"].(string)

		instanceID, err := uuid.FromString(instanceIDStr)
		if err != nil {
			return bus.Response{}, errs.Wrap(err, errs.KindInvalidArgument, "parsing instance_id from rpc request")
		}
		networkID, err := uuid.FromString(networkIDStr)
		if err != nil {
			return bus.Response{}, errs.Wrap(err, errs.KindInvalidArgument, "parsing network_id from rpc request")
		}

		network, err := getNetwork(ctx, networkID)
		if err != nil {
			return bus.Response{}, err
		}

		address, err := allocate(ctx, instanceID, network, requestedAddress)
		if err != nil {
			return bus.Response{}, err
		}
		return bus.Response{Result: map[string]interface{}{"address": address}}, nil
	})
}
