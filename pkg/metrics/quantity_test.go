package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPUMillicores(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"50m", 50},
		{"0m", 0},
		{"1500m", 1500},
		{"0.1", 100},
		{"0.5", 500},
		{"1", 1000},
		{"2", 2000},
		{"1.25", 1250},
		{" 250m ", 250},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCPUMillicores(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCPUMillicores_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "12q", "m"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCPUMillicores(input)
			assert.Error(t, err)
		})
	}
}

func TestParseMemoryBytes(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"512Ki", 524288},
		{"120Mi", 125829120},
		{"1.5Gi", 1610612736},
		{"1Ti", 1099511627776},
		{"1Pi", 1125899906842624},
		{"1Ei", 1152921504606846976},
		{"500K", 500000},
		{"5M", 5000000},
		{"2G", 2000000000},
		{"1T", 1000000000000},
		{"12345", 12345},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMemoryBytes(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMemoryBytes_Invalid(t *testing.T) {
	for _, input := range []string{"", "xyzMi", "Mi", "12.5"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseMemoryBytes(input)
			assert.Error(t, err)
		})
	}
}

func TestParseTopContainers(t *testing.T) {
	output := `POD                     NAME        CPU(cores)   MEMORY(bytes)
svc-a-6d5f7c9b4-x2lpq   svc-a       120m         256Mi
svc-a-6d5f7c9b4-x2lpq   sidecar     1m           10Mi
`
	usages, err := parseTopContainers(output)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, "svc-a-6d5f7c9b4-x2lpq", usages[0].Pod)
	assert.Equal(t, "svc-a", usages[0].Container)
	assert.Equal(t, int64(120), usages[0].CPUMillicores)
	assert.Equal(t, int64(268435456), usages[0].MemoryBytes)
}

func TestParseTopContainers_HeaderOnly(t *testing.T) {
	_, err := parseTopContainers("POD  NAME  CPU(cores)  MEMORY(bytes)\n")
	assert.Error(t, err)
}
