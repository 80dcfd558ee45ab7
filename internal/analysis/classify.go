// Package analysis derives classified, ranked, and thresholded
// summaries from raw profiling records. Every analyzer is total over
// its input: empty lists, zero denominators, and absent optional
// fields yield fully-populated zero summaries, never an error.
package analysis

import "strings"

// Unknown is the sentinel every normalizer returns for empty or
// unmatched input. Callers treat it as "insufficient information",
// not as a failure.
const Unknown = "UNKNOWN"

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// dtypeTokens in priority order. BFLOAT16 precedes FLOAT16 and UINT32
// precedes INT32 because the earlier token's raw strings contain the
// later token.
var dtypeTokens = []string{
	"BFLOAT16",
	"BFLOAT8_B",
	"BFLOAT4_B",
	"FLOAT32",
	"FLOAT16",
	"UINT32",
	"UINT16",
	"UINT8",
	"INT32",
}

// NormalizeDType maps a free-form dtype string (DataType.BFLOAT16,
// torch.bfloat16, BFLOAT16, ...) onto the closed dtype vocabulary.
func NormalizeDType(s string) string {
	if s == "" {
		return Unknown
	}
	upper := strings.ToUpper(s)
	for _, tok := range dtypeTokens {
		if strings.Contains(upper, tok) {
			return tok
		}
	}
	return Unknown
}

// NormalizeLayout maps a free-form layout string onto {TILE,
// ROW_MAJOR, UNKNOWN}. STRIDED is an alias some writers use for
// row-major data.
func NormalizeLayout(s string) string {
	if s == "" {
		return Unknown
	}
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "TILE"):
		return "TILE"
	case strings.Contains(upper, "ROW_MAJOR"), strings.Contains(upper, "STRIDED"):
		return "ROW_MAJOR"
	}
	return Unknown
}

// NormalizeMathFidelity maps a free-form fidelity string onto {LoFi,
// HiFi2, HiFi3, HiFi4, UNKNOWN}.
func NormalizeMathFidelity(s string) string {
	if s == "" {
		return Unknown
	}
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "LOFI"):
		return "LoFi"
	case strings.Contains(upper, "HIFI2"):
		return "HiFi2"
	case strings.Contains(upper, "HIFI3"):
		return "HiFi3"
	case strings.Contains(upper, "HIFI4"):
		return "HiFi4"
	}
	return Unknown
}

var shardingTokens = []string{
	"HEIGHT_SHARDED",
	"WIDTH_SHARDED",
	"BLOCK_SHARDED",
	"INTERLEAVED",
	"SINGLE_BANK",
}

// ParseShardingStrategy extracts the sharding strategy token embedded
// in a tensor's memory_config string.
func ParseShardingStrategy(memoryConfig string) string {
	if memoryConfig == "" {
		return Unknown
	}
	upper := strings.ToUpper(memoryConfig)
	for _, tok := range shardingTokens {
		if strings.Contains(upper, tok) {
			return tok
		}
	}
	return Unknown
}

// ParseBufferType classifies a tensor's memory class from its
// buffer_type field, falling back to the memory_config string. DRAM
// is checked before L1 in both because config strings name the device
// alongside the bank class.
func ParseBufferType(memoryConfig, bufferType string) string {
	if bufferType != "" {
		upper := strings.ToUpper(bufferType)
		if strings.Contains(upper, "DRAM") {
			return "DRAM"
		}
		if strings.Contains(upper, "L1") {
			return "L1"
		}
	}
	if memoryConfig != "" {
		upper := strings.ToUpper(memoryConfig)
		if strings.Contains(upper, "DRAM") {
			return "DRAM"
		}
		if strings.Contains(upper, "L1") {
			return "L1"
		}
	}
	return Unknown
}
