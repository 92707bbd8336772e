// Package result persists one JSON record per experiment: the verdict, the
// cost of remediation, and the full model conversation.
package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/cerrors"
	"github.com/chaosmend/chaosmend-go/pkg/log"
	"github.com/chaosmend/chaosmend-go/pkg/transcript"
	"github.com/chaosmend/chaosmend-go/pkg/types"
)

// Metadata summarizes one experiment
type Metadata struct {
	GeneratedAt     string  `json:"generated_at"`
	FinalStatus     string  `json:"final_status"`
	Retries         int     `json:"retries"`
	TokenCount      int     `json:"token_count"`
	RemediationTime float64 `json:"remediation_time"`
	FailureType     string  `json:"failure_type"`
	Target          string  `json:"target"`
	SequenceNo      int     `json:"sequence_no"`
}

// Record is the persisted form of one experiment
type Record struct {
	Metadata     Metadata             `json:"metadata"`
	Conversation []transcript.Message `json:"conversation"`
}

// Store writes experiment records under a base directory, one file each
type Store struct {
	SavePath string
	now      func() time.Time
}

// NewStore builds a store rooted at savePath, creating it on first save
func NewStore(savePath string) *Store {
	return &Store{SavePath: savePath, now: time.Now}
}

// Save writes the experiment record as
// <target>_<kind>_<unix>.json under the save path. Existing records are
// never overwritten or rewritten.
func (s *Store) Save(spec types.FailureSpec, sequenceNo int, status string, attempts, tokens int, elapsed time.Duration, conversation *transcript.Log) error {
	if err := os.MkdirAll(s.SavePath, 0o755); err != nil {
		return cerrors.Generic{Phase: "result", Reason: "unable to create save path: " + err.Error()}
	}

	now := s.now()
	record := Record{
		Metadata: Metadata{
			GeneratedAt:     now.Format(time.RFC3339),
			FinalStatus:     status,
			Retries:         attempts,
			TokenCount:      tokens,
			RemediationTime: elapsed.Seconds(),
			FailureType:     string(spec.Kind),
			Target:          spec.Target,
			SequenceNo:      sequenceNo,
		},
	}
	if conversation != nil {
		record.Conversation = conversation.Persisted()
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return cerrors.Generic{Phase: "result", Reason: "unable to encode record: " + err.Error()}
	}

	name := fmt.Sprintf("%s_%s_%d.json", spec.Target, spec.Kind, now.Unix())
	path := filepath.Join(s.SavePath, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return cerrors.Generic{Phase: "result", Reason: "unable to write record: " + err.Error()}
	}

	log.Infof("[Result]: Saved experiment record to %v", path)
	return nil
}
