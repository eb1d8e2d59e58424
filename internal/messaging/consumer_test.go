package messaging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-store/internal/models"
)

func TestParseMessage(t *testing.T) {
	var msg models.StatusUpdateMessage
	require.NoError(t, ParseMessage([]byte(`{"order_id":"O1","new_status":"PENDING","changed_by":"CUSTOMER","total_amount":"25.5","item_count":3}`), &msg))
	assert.Equal(t, "O1", msg.OrderID)
	assert.True(t, msg.IsNewOrder())
	assert.Equal(t, "25.5", msg.TotalAmount.String())
}

func TestParseMessage_DecodeErrorIsNotRequeued(t *testing.T) {
	var msg models.StatusUpdateMessage
	err := ParseMessage([]byte(`{not json`), &msg)
	require.Error(t, err)
	assert.True(t, isDecodeError(fmt.Errorf("handler: %w", err)))
	assert.False(t, isDecodeError(errors.New("broker unavailable")))
}
