package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func TestActivityWorkerLogsTicketEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartActivityWorker(service.NewActivityService(dispatcher, zap.New(core)))

	err := dispatcher.Publish(context.Background(), events.Event{
		ID:       "e-1",
		Type:     events.EventTicketStatusChanged,
		TicketID: "t-1",
		Actor:    events.Actor{UserID: "u-1"},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("TicketStatusChanged").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "t-1", entries[0].ContextMap()["ticket_id"])
}

func TestStartActivityWorkerToleratesNil(t *testing.T) {
	assert.NotPanics(t, func() { StartActivityWorker(nil) })
}
