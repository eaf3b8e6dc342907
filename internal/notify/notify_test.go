package notify

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Notify("Apollo", KindProject, "project started"))
	assert.Contains(t, buf.String(), "activity=Apollo")
	assert.Contains(t, buf.String(), `event="project started"`)
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &Recorder{}
	failing := &Recorder{Err: errors.New("smtp down")}

	err := Multi{failing, ok}.Notify("Apollo", KindSprint, "sprint started")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")

	assert.Len(t, ok.Events(), 1)
	assert.Len(t, failing.Events(), 1)
	assert.Equal(t, Event{Activity: "Apollo", Kind: KindSprint, Event: "sprint started"}, ok.Events()[0])
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Notify("a", "b", "c"))
}
