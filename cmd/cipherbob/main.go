package main

import (
	"os"

	gatewaycmder "github.com/papercomputeco/cipherbob/cmd/cipherbob/gateway"
)

func main() {
	if err := gatewaycmder.NewGatewayCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
