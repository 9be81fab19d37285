package luno

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"market-maker-simulator/internal/domain"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSyncsFromWebsocket(t *testing.T) {
	auth := make(chan LunoWebsocketAuthenticationRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		_, message, err := c.Read(r.Context())
		if err != nil {
			return
		}
		var request LunoWebsocketAuthenticationRequest
		if json.Unmarshal(message, &request) == nil {
			auth <- request
		}

		_ = c.Write(r.Context(), websocket.MessageText, []byte(snapshot))
		_ = c.Write(r.Context(), websocket.MessageText, []byte(`{"sequence": "101", "delete_update": {"order_id": "b1"}}`))
		_, _, _ = c.Read(context.Background())
	}))
	t.Cleanup(server.Close)

	stream := CreateStream("key", "secret", "ETHMYR", nil)
	stream.websocketBaseUrl = server.URL + "/"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx) }()

	assert.Equal(t, LunoWebsocketAuthenticationRequest{ApiKeyId: "key", ApiKeySecret: "secret"}, <-auth)

	require.Eventually(t, func() bool {
		book, err := stream.GetCurrentOrderBook(ctx, "ETHMYR")
		return err == nil && len(book.Bids()) == 0 && len(book.Asks()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, err := stream.GetCurrentOrderBook(ctx, "BTCMYR")
	assert.Error(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestStreamNotSyncedBeforeSnapshot(t *testing.T) {
	stream := CreateStream("", "", "ETHMYR", nil)
	_, err := stream.GetCurrentOrderBook(context.Background(), "ETHMYR")
	assert.ErrorIs(t, err, ErrNotSynced)
	assert.Equal(t, domain.LunoStream.String(), stream.GetName())
}
