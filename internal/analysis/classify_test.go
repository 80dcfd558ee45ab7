package analysis

import "testing"

func TestNormalizeDType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"DataType.BFLOAT16", "BFLOAT16"},
		{"torch.bfloat16", "BFLOAT16"},
		{"BFLOAT8_B", "BFLOAT8_B"},
		{"DataType.BFLOAT4_B", "BFLOAT4_B"},
		{"float32", "FLOAT32"},
		{"DataType.UINT32", "UINT32"},
		{"uint16", "UINT16"},
		{"DataType.INT32", "INT32"},
		{"", Unknown},
		{"complex128", Unknown},
	}
	for _, tc := range cases {
		if got := NormalizeDType(tc.in); got != tc.want {
			t.Errorf("NormalizeDType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeDTypeTokenPriority(t *testing.T) {
	// BFLOAT16 contains FLOAT16 and UINT32 contains INT32; the more
	// specific token must win.
	if got := NormalizeDType("Layout stuff BFLOAT16 more"); got != "BFLOAT16" {
		t.Errorf("got %q, want BFLOAT16", got)
	}
	if got := NormalizeDType("DataType.UINT32"); got != "UINT32" {
		t.Errorf("got %q, want UINT32", got)
	}
}

func TestNormalizeLayout(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Layout.TILE", "TILE"},
		{"TILE_LAYOUT", "TILE"},
		{"Layout.ROW_MAJOR", "ROW_MAJOR"},
		{"strided", "ROW_MAJOR"},
		{"", Unknown},
		{"COLUMN_MAJOR", Unknown},
	}
	for _, tc := range cases {
		if got := NormalizeLayout(tc.in); got != tc.want {
			t.Errorf("NormalizeLayout(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeMathFidelity(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"MathFidelity.LoFi", "LoFi"},
		{"LOFI", "LoFi"},
		{"MathFidelity.HiFi2", "HiFi2"},
		{"hifi3", "HiFi3"},
		{"MathFidelity.HiFi4", "HiFi4"},
		{"", Unknown},
		{"-", Unknown},
	}
	for _, tc := range cases {
		if got := NormalizeMathFidelity(tc.in); got != tc.want {
			t.Errorf("NormalizeMathFidelity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseShardingStrategy(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"MemoryConfig(memory_layout=TensorMemoryLayout::HEIGHT_SHARDED)", "HEIGHT_SHARDED"},
		{"width_sharded over L1", "WIDTH_SHARDED"},
		{"TensorMemoryLayout::BLOCK_SHARDED", "BLOCK_SHARDED"},
		{"TensorMemoryLayout::INTERLEAVED, BufferType::DRAM", "INTERLEAVED"},
		{"SINGLE_BANK", "SINGLE_BANK"},
		{"", Unknown},
		{"no layout here", Unknown},
	}
	for _, tc := range cases {
		if got := ParseShardingStrategy(tc.in); got != tc.want {
			t.Errorf("ParseShardingStrategy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseBufferType(t *testing.T) {
	// Explicit buffer_type wins over memory_config.
	if got := ParseBufferType("BufferType::L1", "DRAM"); got != "DRAM" {
		t.Errorf("got %q, want DRAM", got)
	}
	// Fall back to memory_config when buffer_type is empty.
	if got := ParseBufferType("interleaved, BufferType::L1", ""); got != "L1" {
		t.Errorf("got %q, want L1", got)
	}
	// DRAM is matched before L1 within one string.
	if got := ParseBufferType("DRAM banks behind L1 cache", ""); got != "DRAM" {
		t.Errorf("got %q, want DRAM", got)
	}
	if got := ParseBufferType("", ""); got != Unknown {
		t.Errorf("got %q, want %q", got, Unknown)
	}
}
