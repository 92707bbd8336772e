package campaign

import (
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/transcript"
	"github.com/chaosmend/chaosmend-go/pkg/types"
	logrus "github.com/sirupsen/logrus"
)

// Outcome is the result of one experiment slot
type Outcome struct {
	Kind         types.FailureKind
	Target       string
	Injection    types.InjectionOutcome
	Status       string
	Attempts     int
	Tokens       int
	Elapsed      time.Duration
	Conversation *transcript.Log
}

// kindTally counts one failure kind's injections and remediations
type kindTally struct {
	attempted int
	injected  int
	succeeded int
}

// Summary aggregates the campaign's outcomes
type Summary struct {
	outcomes []Outcome
	perKind  map[types.FailureKind]*kindTally
}

// Record folds one outcome into the running aggregates
func (s *Summary) Record(outcome Outcome) {
	s.outcomes = append(s.outcomes, outcome)
	if s.perKind == nil {
		s.perKind = map[types.FailureKind]*kindTally{}
	}
	tally, ok := s.perKind[outcome.Kind]
	if !ok {
		tally = &kindTally{}
		s.perKind[outcome.Kind] = tally
	}
	tally.attempted++
	if outcome.Injection == types.Injected {
		tally.injected++
	}
	if outcome.Status == types.SuccessStatus {
		tally.succeeded++
	}
}

// Total reports how many experiments ran
func (s *Summary) Total() int {
	return len(s.outcomes)
}

// Injected reports how many experiments got past the injection phase
func (s *Summary) Injected() int {
	count := 0
	for _, outcome := range s.outcomes {
		if outcome.Injection == types.Injected {
			count++
		}
	}
	return count
}

// Successes reports how many experiments were verified recovered
func (s *Summary) Successes() int {
	count := 0
	for _, outcome := range s.outcomes {
		if outcome.Status == types.SuccessStatus {
			count++
		}
	}
	return count
}

// SuccessRate is the fraction of injected experiments verified recovered.
// Slots where the failure never took hold say nothing about remediation and
// are left out of the denominator.
func (s *Summary) SuccessRate() float64 {
	injected := s.Injected()
	if injected == 0 {
		return 0
	}
	return float64(s.Successes()) / float64(injected)
}

// Averages reports mean attempts, elapsed time, and token counts over the
// injected experiments; when successOnly is set, only verified recoveries
// contribute
func (s *Summary) Averages(successOnly bool) (attempts, elapsedSeconds, tokens float64) {
	count := 0
	for _, outcome := range s.outcomes {
		if outcome.Injection != types.Injected {
			continue
		}
		if successOnly && outcome.Status != types.SuccessStatus {
			continue
		}
		attempts += float64(outcome.Attempts)
		elapsedSeconds += outcome.Elapsed.Seconds()
		tokens += float64(outcome.Tokens)
		count++
	}
	if count == 0 {
		return 0, 0, 0
	}
	return attempts / float64(count), elapsedSeconds / float64(count), tokens / float64(count)
}

// Log prints the aggregate summary block
func (s *Summary) Log() {
	avgAttempts, avgElapsed, avgTokens := s.Averages(false)
	okAttempts, okElapsed, okTokens := s.Averages(true)

	log.InfoWithValues("[Campaign]: Summary", logrus.Fields{
		"experiments":          s.Total(),
		"injected":             s.Injected(),
		"successes":            s.Successes(),
		"success_rate":         s.SuccessRate(),
		"avg_attempts":         avgAttempts,
		"avg_elapsed_seconds":  avgElapsed,
		"avg_tokens":           avgTokens,
		"avg_attempts_ok":      okAttempts,
		"avg_elapsed_ok":       okElapsed,
		"avg_tokens_ok":        okTokens,
	})
	for kind, tally := range s.perKind {
		log.InfoWithValues("[Campaign]: Per-kind summary", logrus.Fields{
			"failure_kind": string(kind),
			"attempted":    tally.attempted,
			"injected":     tally.injected,
			"remediated":   tally.succeeded,
		})
	}
}
