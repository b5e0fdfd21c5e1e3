package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryMessageSetsRD(t *testing.T) {
	msg, err := NewQueryMessage(42, "example.com.", RRTypeA, RRClassIN, true)
	require.NoError(t, err)
	assert.True(t, msg.Flags.RD)
	assert.False(t, msg.Flags.QR)
	assert.Equal(t, uint16(42), msg.ID)
}

func TestNewErrorResponseEchoesQuery(t *testing.T) {
	query, err := NewQueryMessage(7, "example.com.", RRTypeA, RRClassIN, true)
	require.NoError(t, err)

	resp := NewErrorResponse(query, RCodeNXDomain)
	assert.Equal(t, query.ID, resp.ID)
	assert.True(t, resp.Flags.QR)
	assert.True(t, resp.Flags.RD)
	assert.True(t, resp.IsError())
	assert.Equal(t, RCodeNXDomain, resp.Flags.RCode)
}

func TestMessageValidateRejectsBadSectionRecord(t *testing.T) {
	msg := Message{
		Answer: []ResourceRecord{
			{Name: "example.com.", Class: RRClassIN, Type: RRTypeA, Data: NSData{NSDName: "ns1.example.com."}},
		},
	}
	require.Error(t, msg.Validate())
}
