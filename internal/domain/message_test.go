package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage_KnownTypes(t *testing.T) {
	for _, typ := range []string{MessageRequestStoreData, MessageStoreDataResponse, MessageDataUpdate} {
		msg, ok := DecodeMessage([]byte(`{"type":"` + typ + `","timestamp":123}`))
		require.True(t, ok, "type %s must decode", typ)
		assert.Equal(t, typ, msg.Type)
	}
}

func TestDecodeMessage_UnknownTypeIgnored(t *testing.T) {
	_, ok := DecodeMessage([]byte(`{"type":"FUTURE_THING","timestamp":123}`))
	assert.False(t, ok, "unknown message types are dropped, not errors")
}

func TestDecodeMessage_MalformedIgnored(t *testing.T) {
	_, ok := DecodeMessage([]byte(`{"type":`))
	assert.False(t, ok)
}

func TestMessage_CollectionFieldAliases(t *testing.T) {
	storeMsg, ok := DecodeMessage([]byte(`{"type":"STORE_DATA_RESPONSE","stores":[{"id":"store_1_a"}],"timestamp":1}`))
	require.True(t, ok)
	require.Len(t, storeMsg.Collection(), 1)
	assert.Equal(t, EntityStore, storeMsg.EntityType(), "store responses imply the store collection")

	dataMsg, ok := DecodeMessage([]byte(`{"type":"DATA_UPDATE","entity":"product","data":[{"id":"product_1_a"}],"timestamp":1}`))
	require.True(t, ok)
	require.Len(t, dataMsg.Collection(), 1)
	assert.Equal(t, EntityProduct, dataMsg.EntityType())
}
