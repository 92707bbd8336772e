package metrics

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// memorySuffixes maps the kubectl quantity suffixes to their byte multiplier.
// Two-letter suffixes are binary (powers of 1024), single-letter are decimal
// (powers of 1000). Longer suffixes must be matched first.
var memorySuffixes = []struct {
	suffix     string
	multiplier float64
}{
	{"Ki", 1 << 10},
	{"Mi", 1 << 20},
	{"Gi", 1 << 30},
	{"Ti", 1 << 40},
	{"Pi", 1 << 50},
	{"Ei", 1 << 60},
	{"K", 1e3},
	{"M", 1e6},
	{"G", 1e9},
	{"T", 1e12},
}

// ParseCPUMillicores converts a CPU quantity like "50m" or "0.1" to millicores
func ParseCPUMillicores(cpu string) (int64, error) {
	cpu = strings.TrimSpace(cpu)
	if cpu == "" {
		return 0, errors.New("empty cpu quantity")
	}
	if strings.HasSuffix(cpu, "m") {
		value, err := strconv.ParseFloat(strings.TrimSuffix(cpu, "m"), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid cpu quantity %q", cpu)
		}
		return int64(value), nil
	}
	cores, err := strconv.ParseFloat(cpu, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid cpu quantity %q", cpu)
	}
	return int64(cores*1000 + 0.5), nil
}

// ParseMemoryBytes converts a memory quantity like "120Mi", "1.5Gi" or "500K"
// into bytes. Plain numbers are taken as bytes. The conversion is lossy for
// non-canonical inputs, round-tripping is not a goal.
func ParseMemoryBytes(mem string) (int64, error) {
	mem = strings.TrimSpace(mem)
	if mem == "" {
		return 0, errors.New("empty memory quantity")
	}
	for _, entry := range memorySuffixes {
		if strings.HasSuffix(mem, entry.suffix) {
			value, err := strconv.ParseFloat(strings.TrimSuffix(mem, entry.suffix), 64)
			if err != nil {
				return 0, errors.Wrapf(err, "invalid memory quantity %q", mem)
			}
			return int64(value * entry.multiplier), nil
		}
	}
	value, err := strconv.ParseInt(mem, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid memory quantity %q", mem)
	}
	return value, nil
}
