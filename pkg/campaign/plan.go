package campaign

import (
	"os"
	"strings"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/types"
)

// loadPlanFile parses an experiment file: one experiment per line as
// "<kind>" or "<kind> <target>", blank lines and # comments skipped
func loadPlanFile(path string) ([]slot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Generic{Phase: "campaign", Reason: "unable to read experiment file: " + err.Error()}
	}

	var plan []slot
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		kind := types.FailureKind(fields[0])
		if !kind.IsValid() {
			return nil, cerrors.Generic{Phase: "campaign", Reason: "unknown failure kind in experiment file: " + fields[0]}
		}
		planned := slot{kind: kind}
		if len(fields) > 1 {
			planned.target = fields[1]
		}
		plan = append(plan, planned)
	}
	if len(plan) == 0 {
		return nil, cerrors.Generic{Phase: "campaign", Reason: "experiment file contains no experiments"}
	}
	return plan, nil
}
