// Package idhash derives deterministic identifiers so that replaying the
// same inputs yields byte-identical ids.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade id.
// Formula: SHA256(run_id|order_id|time_ms|seq), hex encoded.
func ComputeTradeID(runID, orderID string, timeMs int64, seq int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", runID, orderID, timeMs, seq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRunID computes a deterministic run id from the experiment name
// and run index.
// Formula: SHA256(name|index), hex encoded, truncated to 16 characters.
func ComputeRunID(name string, index int) string {
	data := fmt.Sprintf("%s|%d", name, index)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}
