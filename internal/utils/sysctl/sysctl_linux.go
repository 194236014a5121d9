// Package sysctl reads and writes /proc/sys entries. The netlink driver
// uses it to turn on IPv4 forwarding and proxy ARP on the bridges it
// manages, the way nova-network's linux_net driver shells out to sysctl.
package sysctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sysctl gets the value of name, or sets it to params[0] when one value is
// given. Names may use dots or slashes as the path separator.
func Sysctl(name string, params ...string) (string, error) {
	if len(params) > 1 {
		return "", fmt.Errorf("sysctl: at most one value may be set, got %d", len(params))
	} else if len(params) == 1 {
		return setSysctl(name, params[0])
	}
	return getSysctl(name)
}

func getSysctl(name string) (string, error) {
	fullName := filepath.Join("/proc/sys", toNormalName(name))
	data, err := os.ReadFile(fullName)
	if err != nil {
		return "", err
	}
	return string(data[:len(data)-1]), nil
}

func setSysctl(name, value string) (string, error) {
	fullName := filepath.Join("/proc/sys", toNormalName(name))
	if err := os.WriteFile(fullName, []byte(value), 0o644); err != nil {
		return "", err
	}
	return getSysctl(name)
}

// toNormalName rewrites a dot-separated sysctl name ("net.ipv4.ip_forward")
// into the slash-separated /proc/sys path nova-network and this driver both
// expect, leaving an already slash-separated name untouched.
func toNormalName(name string) string {
	interchange := false
	for _, c := range name {
		if c == '.' {
			interchange = true
			break
		}
		if c == '/' {
			break
		}
	}
	if interchange {
		r := strings.NewReplacer(".", "/", "/", ".")
		return r.Replace(name)
	}
	return name
}
