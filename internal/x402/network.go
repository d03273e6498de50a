package x402

import (
	"strconv"
	"strings"
)

// v1 network names
var legacyNetworks = map[string]int64{
	"base":           8453,
	"base-sepolia":   84532,
	"ethereum":       1,
	"sepolia":        11155111,
	"avalanche":      43114,
	"avalanche-fuji": 43113,
	"polygon":        137,
	"polygon-amoy":   80002,
}

// ChainID resolves a CAIP-2 "eip155:<id>" identifier or a v1 network name.
func ChainID(network string) (int64, bool) {
	network = strings.ToLower(strings.TrimSpace(network))
	if rest, ok := strings.CutPrefix(network, "eip155:"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	id, ok := legacyNetworks[network]
	return id, ok
}
