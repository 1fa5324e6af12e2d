package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/helpdesk-service/internal/model"
)

func TestReplyEvent_Encode(t *testing.T) {
	b, err := ReplyEvent(&model.Reply{ID: 3, TicketID: 9, Message: "hi", RepliedBy: 2}, "agent@x.com").Encode()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, EventReply, got["type"])
	assert.Equal(t, float64(9), got["ticket_id"])
	assert.Equal(t, "New reply by agent@x.com: hi", got["text"])
	assert.NotContains(t, got, "status")
}

func TestStatusEvent_Encode(t *testing.T) {
	b, err := StatusEvent(&model.Ticket{ID: 4, Status: model.TicketStatusClose}).Encode()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Status changed to close", got["text"])
	assert.Equal(t, "close", got["status"])
	assert.NotContains(t, got, "reply")
}
