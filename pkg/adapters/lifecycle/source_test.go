package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge "github.com/aretw0/bidtrail/pkg/adapters/lifecycle"
	"github.com/aretw0/bidtrail/pkg/core"
)

func TestChange_String(t *testing.T) {
	assert.Equal(t, "ledger changed: documents", bridge.Change{Stream: core.StreamDocuments}.String())
}

func TestSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan core.StreamID, 2)
	src := bridge.NewSource(changes)
	require.NoError(t, src.Start(ctx))

	changes <- core.StreamStatus
	changes <- core.StreamEvents
	close(changes)

	var got []core.StreamID
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				assert.Equal(t, []core.StreamID{core.StreamStatus, core.StreamEvents}, got)
				return
			}
			change, isChange := ev.(bridge.Change)
			require.True(t, isChange)
			got = append(got, change.Stream)
		case <-timeout:
			t.Fatal("source did not close after its input")
		}
	}
}
