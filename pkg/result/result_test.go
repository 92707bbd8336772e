package result

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/chaosmend/chaosmend-go/pkg/transcript"
	"github.com/chaosmend/chaosmend-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveWritesRecord(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "results"))
	fixed := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	conversation := transcript.NewLog("system prompt")
	conversation.Append(transcript.RoleUser, "the cart service is failing")

	spec := types.FailureSpec{Kind: types.CPUStress, Target: "cartservice", Namespace: "shop"}
	require.NoError(t, store.Save(spec, 4, types.SuccessStatus, 2, 1234, 95*time.Second, conversation))

	path := filepath.Join(store.SavePath, "cartservice_cpu-stress_"+strconv.FormatInt(fixed.Unix(), 10)+".json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, types.SuccessStatus, record.Metadata.FinalStatus)
	assert.Equal(t, 2, record.Metadata.Retries)
	assert.Equal(t, 1234, record.Metadata.TokenCount)
	assert.Equal(t, float64(95), record.Metadata.RemediationTime)
	assert.Equal(t, "cpu-stress", record.Metadata.FailureType)
	assert.Equal(t, 4, record.Metadata.SequenceNo)
	assert.Len(t, record.Conversation, 2)
}

func TestSaveNilConversation(t *testing.T) {
	store := NewStore(t.TempDir())

	spec := types.FailureSpec{Kind: types.PodFail, Target: "frontend"}
	require.NoError(t, store.Save(spec, 0, types.FailedStatus, 0, 0, 0, nil))
}

func TestSaveCreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "a", "b", "results")
	store := NewStore(nested)

	spec := types.FailureSpec{Kind: types.DiskIO, Target: "mongodb"}
	require.NoError(t, store.Save(spec, 1, types.FailedStatus, 2, 10, time.Second, transcript.NewLog("s")))

	entries, err := os.ReadDir(nested)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

