package config_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nethost.io/nethost/internal/config"
)

func TestMergeKeepsExplicitFlagOverConfigValue(t *testing.T) {
	o := config.NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--network-host=operator-set"}))

	conf := config.NewOptions()
	conf.NetworkHost = "from-config-file"
	conf.NumNetworks = 7

	o.Merge(fs, conf)

	assert.Equal(t, "operator-set", o.NetworkHost, "an explicitly-passed flag must win over the config file")
	assert.Equal(t, 7, o.NumNetworks, "an un-passed flag should take the config file's value")
}

func TestValidateRequiresNetworkHostAndFixedRange(t *testing.T) {
	o := config.NewOptions()
	errs := o.Validate()
	require.Len(t, errs, 2)
}

func TestValidateRequiresTimeoutWhenSweepEnabled(t *testing.T) {
	o := config.NewOptions()
	o.NetworkHost = "host-a"
	o.FixedRange = "10.0.0.0/24"
	o.TimeoutFixedIPs = true
	o.FixedIPDisassociateTimeout = 0

	errs := o.Validate()
	require.Len(t, errs, 1)
}
