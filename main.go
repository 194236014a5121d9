package main

import (
	"nethost.io/nethost/cmd"
	"nethost.io/nethost/internal/profile"
)

func main() {
	defer profile.Start().Stop()
	cmd.Execute()
}
