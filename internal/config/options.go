// Package config enumerates the network-host process's configuration
// and wires it through pflag/viper: flags registered on a FlagSet,
// optionally overridden by a config file and environment variables,
// merged back onto whichever values the operator actually passed on the
// command line.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultConfigName = "nethost"
	envPrefix         = "NETHOST"
)

// Options is every configuration key network-host recognizes, flattened
// into one struct — network-host has no auditing/metrics-specific config
// surface that would warrant splitting it by subsystem.
type Options struct {
	ConfigFile string `json:"configFile,omitempty" yaml:"configFile,omitempty" mapstructure:"configFile"`
	DebugMode  bool   `json:"debug,omitempty" yaml:"debug,omitempty" mapstructure:"debug"`

	// NetworkHost is this process's host identifier, the single source of
	// truth threaded into engine.Options.Host.
	NetworkHost string `json:"networkHost,omitempty" yaml:"networkHost,omitempty" mapstructure:"networkHost"`
	// NetworkDriver selects the Driver backend (netlink vs noop/fake).
	NetworkDriver string `json:"networkDriver,omitempty" yaml:"networkDriver,omitempty" mapstructure:"networkDriver"`
	// Topology selects the policy variant this process runs: flat,
	// flatdhcp or vlan, mirroring nova-network's network_manager flag.
	Topology string `json:"topology,omitempty" yaml:"topology,omitempty" mapstructure:"topology"`

	FlatNetworkBridge    string `json:"flatNetworkBridge,omitempty" yaml:"flatNetworkBridge,omitempty" mapstructure:"flatNetworkBridge"`
	FlatNetworkDNS       string `json:"flatNetworkDns,omitempty" yaml:"flatNetworkDns,omitempty" mapstructure:"flatNetworkDns"`
	FlatInjected         bool   `json:"flatInjected,omitempty" yaml:"flatInjected,omitempty" mapstructure:"flatInjected"`
	FlatInterface        string `json:"flatInterface,omitempty" yaml:"flatInterface,omitempty" mapstructure:"flatInterface"`
	FlatNetworkDHCPStart string `json:"flatNetworkDhcpStart,omitempty" yaml:"flatNetworkDhcpStart,omitempty" mapstructure:"flatNetworkDhcpStart"`

	VLANStart    int    `json:"vlanStart,omitempty" yaml:"vlanStart,omitempty" mapstructure:"vlanStart"`
	VLANInterface string `json:"vlanInterface,omitempty" yaml:"vlanInterface,omitempty" mapstructure:"vlanInterface"`

	NumNetworks int `json:"numNetworks,omitempty" yaml:"numNetworks,omitempty" mapstructure:"numNetworks"`
	NetworkSize int `json:"networkSize,omitempty" yaml:"networkSize,omitempty" mapstructure:"networkSize"`

	VPNIP         string `json:"vpnIp,omitempty" yaml:"vpnIp,omitempty" mapstructure:"vpnIp"`
	VPNStart      int    `json:"vpnStart,omitempty" yaml:"vpnStart,omitempty" mapstructure:"vpnStart"`
	CntVPNClients int    `json:"cntVpnClients,omitempty" yaml:"cntVpnClients,omitempty" mapstructure:"cntVpnClients"`

	FloatingRange string `json:"floatingRange,omitempty" yaml:"floatingRange,omitempty" mapstructure:"floatingRange"`
	FixedRange    string `json:"fixedRange,omitempty" yaml:"fixedRange,omitempty" mapstructure:"fixedRange"`
	FixedRangeV6  string `json:"fixedRangeV6,omitempty" yaml:"fixedRangeV6,omitempty" mapstructure:"fixedRangeV6"`
	GatewayV6     string `json:"gatewayV6,omitempty" yaml:"gatewayV6,omitempty" mapstructure:"gatewayV6"`
	UseIPv6       bool   `json:"useIpv6,omitempty" yaml:"useIpv6,omitempty" mapstructure:"useIpv6"`

	UpdateDHCPOnDisassociate   bool          `json:"updateDhcpOnDisassociate,omitempty" yaml:"updateDhcpOnDisassociate,omitempty" mapstructure:"updateDhcpOnDisassociate"`
	FixedIPDisassociateTimeout time.Duration `json:"fixedIpDisassociateTimeout,omitempty" yaml:"fixedIpDisassociateTimeout,omitempty" mapstructure:"fixedIpDisassociateTimeout"`
	TimeoutFixedIPs            bool          `json:"timeoutFixedIps,omitempty" yaml:"timeoutFixedIps,omitempty" mapstructure:"timeoutFixedIps"`
	PeriodicInterval           time.Duration `json:"periodicInterval,omitempty" yaml:"periodicInterval,omitempty" mapstructure:"periodicInterval"`

	CreateUniqueMACAddressAttempts int `json:"createUniqueMacAddressAttempts,omitempty" yaml:"createUniqueMacAddressAttempts,omitempty" mapstructure:"createUniqueMacAddressAttempts"`

	FakeCall    bool `json:"fakeCall,omitempty" yaml:"fakeCall,omitempty" mapstructure:"fakeCall"`
	FakeNetwork bool `json:"fakeNetwork,omitempty" yaml:"fakeNetwork,omitempty" mapstructure:"fakeNetwork"`

	AutoAssignFloatingIP bool `json:"autoAssignFloatingIp,omitempty" yaml:"autoAssignFloatingIp,omitempty" mapstructure:"autoAssignFloatingIp"`

	// BusMaxWorkers/BusQueueDepth size the in-process Bus worker pool
	// (internal/bus/local), required to run the RPC fan-out at all.
	BusMaxWorkers int    `json:"busMaxWorkers,omitempty" yaml:"busMaxWorkers,omitempty" mapstructure:"busMaxWorkers"`
	BusQueueDepth int    `json:"busQueueDepth,omitempty" yaml:"busQueueDepth,omitempty" mapstructure:"busQueueDepth"`
	BusTopic      string `json:"busTopic,omitempty" yaml:"busTopic,omitempty" mapstructure:"busTopic"`

	// DatabaseURL is the sqlstore connection string (gobuffalo/pop DSN).
	DatabaseURL string `json:"databaseUrl,omitempty" yaml:"databaseUrl,omitempty" mapstructure:"databaseUrl"`

	BindAddress  string `json:"bindAddress,omitempty" yaml:"bindAddress,omitempty" mapstructure:"bindAddress"`
	InsecurePort int    `json:"insecurePort,omitempty" yaml:"insecurePort,omitempty" mapstructure:"insecurePort"`
}

// NewOptions returns an Options populated with the same defaults the
// original nova-network config flags carry.
func NewOptions() *Options {
	return &Options{
		NetworkDriver:                  "netlink",
		Topology:                       "flatdhcp",
		FlatNetworkBridge:              "br100",
		FlatInterface:                  "eth0",
		VLANStart:                      100,
		VLANInterface:                  "eth0",
		NumNetworks:                    1,
		NetworkSize:                    256,
		VPNStart:                       1000,
		CntVPNClients:                  0,
		UpdateDHCPOnDisassociate:       false,
		FixedIPDisassociateTimeout:     600 * time.Second,
		PeriodicInterval:               60 * time.Second,
		CreateUniqueMACAddressAttempts: 5,
		BusMaxWorkers:                  4,
		BusQueueDepth:                  64,
		BusTopic:                       "network",
		BindAddress:                    "0.0.0.0",
		InsecurePort:                   9090,
	}
}

// AddFlags registers every Options field on fs, defaulting each flag to
// the value already set on o.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", o.ConfigFile, "config file path")
	fs.BoolVar(&o.DebugMode, "debug", o.DebugMode, "enable debug mode")

	fs.StringVar(&o.NetworkHost, "network-host", o.NetworkHost, "this process's network-host identifier")
	fs.StringVar(&o.NetworkDriver, "network-driver", o.NetworkDriver, "network driver backend (netlink, noop)")
	fs.StringVar(&o.Topology, "topology", o.Topology, "policy variant this process runs (flat, flatdhcp, vlan)")

	fs.StringVar(&o.FlatNetworkBridge, "flat-network-bridge", o.FlatNetworkBridge, "bridge device for flat/flatdhcp networks")
	fs.StringVar(&o.FlatNetworkDNS, "flat-network-dns", o.FlatNetworkDNS, "dns server for flat networks")
	fs.BoolVar(&o.FlatInjected, "flat-injected", o.FlatInjected, "inject network config into guest images")
	fs.StringVar(&o.FlatInterface, "flat-interface", o.FlatInterface, "physical interface enslaved to the flat bridge")
	fs.StringVar(&o.FlatNetworkDHCPStart, "flat-network-dhcp-start", o.FlatNetworkDHCPStart, "first address of the flat dhcp range")

	fs.IntVar(&o.VLANStart, "vlan-start", o.VLANStart, "first vlan tag assigned by create_networks")
	fs.StringVar(&o.VLANInterface, "vlan-interface", o.VLANInterface, "physical interface enslaved to vlan bridges")

	fs.IntVar(&o.NumNetworks, "num-networks", o.NumNetworks, "number of networks create_networks carves by default")
	fs.IntVar(&o.NetworkSize, "network-size", o.NetworkSize, "address count per carved network")

	fs.StringVar(&o.VPNIP, "vpn-ip", o.VPNIP, "public ip used for vpn access instances")
	fs.IntVar(&o.VPNStart, "vpn-start", o.VPNStart, "first vpn public port assigned by create_networks")
	fs.IntVar(&o.CntVPNClients, "cnt-vpn-clients", o.CntVPNClients, "reserved vpn client address count per vlan network")

	fs.StringVar(&o.FloatingRange, "floating-range", o.FloatingRange, "cidr floating addresses are carved from")
	fs.StringVar(&o.FixedRange, "fixed-range", o.FixedRange, "cidr fixed addresses are carved from")
	fs.StringVar(&o.FixedRangeV6, "fixed-range-v6", o.FixedRangeV6, "ipv6 prefix fixed addresses are derived from")
	fs.StringVar(&o.GatewayV6, "gateway-v6", o.GatewayV6, "ipv6 gateway address")
	fs.BoolVar(&o.UseIPv6, "use-ipv6", o.UseIPv6, "derive and report ipv6 global addresses")

	fs.BoolVar(&o.UpdateDHCPOnDisassociate, "update-dhcp-on-disassociate", o.UpdateDHCPOnDisassociate, "refresh dhcp conf when release_fixed_ip finds the address already unallocated")
	fs.DurationVar(&o.FixedIPDisassociateTimeout, "fixed-ip-disassociate-timeout", o.FixedIPDisassociateTimeout, "how long an unleased fixed ip may sit before the sweeper clears its instance association")
	fs.BoolVar(&o.TimeoutFixedIPs, "timeout-fixed-ips", o.TimeoutFixedIPs, "enable the stale-lease sweep (flatdhcp/vlan only)")
	fs.DurationVar(&o.PeriodicInterval, "periodic-interval", o.PeriodicInterval, "interval between periodic task loop ticks")

	fs.IntVar(&o.CreateUniqueMACAddressAttempts, "create-unique-mac-address-attempts", o.CreateUniqueMACAddressAttempts, "vif mac-collision retry budget")

	fs.BoolVar(&o.FakeCall, "fake-call", o.FakeCall, "accepted and merged from config; no code path reads it, so rpc fan-out still dispatches remote networks over the bus")
	fs.BoolVar(&o.FakeNetwork, "fake-network", o.FakeNetwork, "skip all driver calls that touch host networking")

	fs.BoolVar(&o.AutoAssignFloatingIP, "auto-assign-floating-ip", o.AutoAssignFloatingIP, "automatically allocate and associate a floating ip per new instance")

	fs.IntVar(&o.BusMaxWorkers, "bus-max-workers", o.BusMaxWorkers, "in-process bus worker pool size")
	fs.IntVar(&o.BusQueueDepth, "bus-queue-depth", o.BusQueueDepth, "in-process bus job queue depth")
	fs.StringVar(&o.BusTopic, "bus-topic", o.BusTopic, "bus topic the rpc fan-out dispatches _rpc_allocate_fixed_ip under")

	fs.StringVar(&o.DatabaseURL, "database-url", o.DatabaseURL, "sqlstore connection string")

	fs.StringVar(&o.BindAddress, "bind-address", o.BindAddress, "ops http server bind address")
	fs.IntVar(&o.InsecurePort, "insecure-port", o.InsecurePort, "ops http server port")
}

// Merge copies every flag conf carries that wasn't explicitly set on fs
// onto o — a config-file or env value only wins where the operator didn't
// pass the flag directly.
func (o *Options) Merge(fs *pflag.FlagSet, conf *Options) {
	if conf == nil {
		return
	}
	merge := map[string]func(){
		"config":                               func() { o.ConfigFile = conf.ConfigFile },
		"debug":                                func() { o.DebugMode = conf.DebugMode },
		"network-host":                         func() { o.NetworkHost = conf.NetworkHost },
		"network-driver":                       func() { o.NetworkDriver = conf.NetworkDriver },
		"topology":                             func() { o.Topology = conf.Topology },
		"flat-network-bridge":                  func() { o.FlatNetworkBridge = conf.FlatNetworkBridge },
		"flat-network-dns":                     func() { o.FlatNetworkDNS = conf.FlatNetworkDNS },
		"flat-injected":                        func() { o.FlatInjected = conf.FlatInjected },
		"flat-interface":                       func() { o.FlatInterface = conf.FlatInterface },
		"flat-network-dhcp-start":              func() { o.FlatNetworkDHCPStart = conf.FlatNetworkDHCPStart },
		"vlan-start":                           func() { o.VLANStart = conf.VLANStart },
		"vlan-interface":                       func() { o.VLANInterface = conf.VLANInterface },
		"num-networks":                         func() { o.NumNetworks = conf.NumNetworks },
		"network-size":                         func() { o.NetworkSize = conf.NetworkSize },
		"vpn-ip":                               func() { o.VPNIP = conf.VPNIP },
		"vpn-start":                            func() { o.VPNStart = conf.VPNStart },
		"cnt-vpn-clients":                      func() { o.CntVPNClients = conf.CntVPNClients },
		"floating-range":                       func() { o.FloatingRange = conf.FloatingRange },
		"fixed-range":                          func() { o.FixedRange = conf.FixedRange },
		"fixed-range-v6":                       func() { o.FixedRangeV6 = conf.FixedRangeV6 },
		"gateway-v6":                           func() { o.GatewayV6 = conf.GatewayV6 },
		"use-ipv6":                             func() { o.UseIPv6 = conf.UseIPv6 },
		"update-dhcp-on-disassociate":          func() { o.UpdateDHCPOnDisassociate = conf.UpdateDHCPOnDisassociate },
		"fixed-ip-disassociate-timeout":        func() { o.FixedIPDisassociateTimeout = conf.FixedIPDisassociateTimeout },
		"timeout-fixed-ips":                    func() { o.TimeoutFixedIPs = conf.TimeoutFixedIPs },
		"periodic-interval":                    func() { o.PeriodicInterval = conf.PeriodicInterval },
		"create-unique-mac-address-attempts":   func() { o.CreateUniqueMACAddressAttempts = conf.CreateUniqueMACAddressAttempts },
		"fake-call":                            func() { o.FakeCall = conf.FakeCall },
		"fake-network":                         func() { o.FakeNetwork = conf.FakeNetwork },
		"auto-assign-floating-ip":              func() { o.AutoAssignFloatingIP = conf.AutoAssignFloatingIP },
		"bus-max-workers":                      func() { o.BusMaxWorkers = conf.BusMaxWorkers },
		"bus-queue-depth":                      func() { o.BusQueueDepth = conf.BusQueueDepth },
		"bus-topic":                            func() { o.BusTopic = conf.BusTopic },
		"database-url":                         func() { o.DatabaseURL = conf.DatabaseURL },
		"bind-address":                         func() { o.BindAddress = conf.BindAddress },
		"insecure-port":                        func() { o.InsecurePort = conf.InsecurePort },
	}
	for name, apply := range merge {
		if f := fs.Lookup(name); f != nil && !f.Changed {
			apply()
		}
	}
}

// Validate checks the invariants AddFlags alone can't enforce.
func (o *Options) Validate() []error {
	var errs []error
	if o.NetworkHost == "" {
		errs = append(errs, fmt.Errorf("* network-host must be set"))
	}
	if o.FixedRange == "" {
		errs = append(errs, fmt.Errorf("* fixed-range must be set"))
	}
	if o.TimeoutFixedIPs && o.FixedIPDisassociateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("* fixed-ip-disassociate-timeout must be positive when timeout-fixed-ips is enabled"))
	}
	return errs
}

// config wraps the viper load-once machinery.
type config struct {
	loadOnce sync.Once
	name     string
	path     string
	options  *Options
}

// MergeConfig loads path's config file (if any), applies env/file
// overrides onto o wherever the operator didn't pass an explicit flag,
// and validates the result.
func MergeConfig(fs *pflag.FlagSet, o *Options) (*Options, error) {
	conf, err := LoadConfig(o.ConfigFile)
	if err != nil {
		return nil, err
	}
	o.Merge(fs, conf)
	return o, errors.Join(o.Validate()...)
}

// LoadConfig reads name/path's config file via viper, falling back to
// defaults if nothing is on disk.
func LoadConfig(path string) (*Options, error) {
	name, dir := resolvePath(path)
	if name == "" {
		name = defaultConfigName
	}

	viper.SetConfigName(name)
	viper.AddConfigPath(dir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	c := &config{name: name, path: dir, options: NewOptions()}
	return c.loadFromDisk()
}

func (c *config) loadFromDisk() (*Options, error) {
	var err error
	c.loadOnce.Do(func() {
		if err = viper.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
				err = nil
			}
			return
		}
		err = viper.Unmarshal(c.options)
	})
	return c.options, err
}

// resolvePath splits a config file path into viper's (name, dir) pair.
func resolvePath(p string) (name, dir string) {
	if p == "" {
		return "", "."
	}
	dir, file := filepath.Split(p)
	ext := filepath.Ext(file)
	name = strings.TrimSuffix(file, ext)
	if dir == "" {
		dir = "."
	}
	return name, strings.TrimSuffix(dir, "/")
}
