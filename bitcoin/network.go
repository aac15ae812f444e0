// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// ParseNetwork returns Network by its name.
func ParseNetwork(name string) (Network, error) {
	switch network := Network(name); network {
	case NetworkMainnet, NetworkTestnet, NetworkRegtest:
		return network, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, name)
	}
}

// Params returns chain parameters of the network.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case NetworkMainnet:
		return &chaincfg.MainNetParams
	case NetworkTestnet:
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.RegressionNetParams
	}
}
