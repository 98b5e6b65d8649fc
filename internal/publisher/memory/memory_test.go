package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublish_RecordsEvents(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "alerts", map[string]string{"title": "Gaming bill"})
	require.NoError(t, err)
	require.Equal(t, "1", id)

	id, err = p.Publish(context.Background(), "alerts", map[string]string{"title": "Water bill"})
	require.NoError(t, err)
	require.Equal(t, "2", id)

	events := p.Events()
	require.Len(t, events, 2)
	require.Equal(t, "alerts", events[0].Topic)
	require.JSONEq(t, `{"title":"Gaming bill"}`, string(events[0].Data))
}

func TestPublish_RejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "alerts", make(chan int))
	require.Error(t, err)
	require.Empty(t, p.Events())
}
