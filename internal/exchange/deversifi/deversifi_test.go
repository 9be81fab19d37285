package deversifi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"market-maker-simulator/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &path
}

func TestGetCurrentOrderBook(t *testing.T) {
	server, path := newServer(t, http.StatusOK, `[[1999.5,2,1.25],[2001,1,-0.5],[1998,3,"4"]]`)
	exchange := CreateClient(Options{BaseUrl: server.URL}, nil)

	book, err := exchange.GetCurrentOrderBook(context.Background(), "ETH:USDT")
	require.NoError(t, err)

	assert.Equal(t, "/market-data/book/ETH:USDT/P0/25", *path)
	assert.Equal(t, domain.Deversifi, book.Source)
	assert.Equal(t, "ETH:USDT", book.Pair)
	require.Len(t, book.Levels, 3)

	assert.Equal(t, domain.Bid, book.Levels[0].Side)
	assert.True(t, decimal.RequireFromString("1999.5").Equal(book.Levels[0].Price))
	assert.Equal(t, 2, book.Levels[0].Count)
	assert.True(t, decimal.RequireFromString("1.25").Equal(book.Levels[0].Amount))

	assert.Equal(t, domain.Ask, book.Levels[1].Side)
	assert.True(t, decimal.RequireFromString("0.5").Equal(book.Levels[1].Amount))

	assert.Len(t, book.Bids(), 2)
	assert.Len(t, book.Asks(), 1)
}

func TestGetCurrentOrderBookEmpty(t *testing.T) {
	server, _ := newServer(t, http.StatusOK, `[]`)
	exchange := CreateClient(Options{BaseUrl: server.URL}, nil)

	book, err := exchange.GetCurrentOrderBook(context.Background(), "ETH:USDT")
	require.NoError(t, err)
	assert.Empty(t, book.Levels)
}

func TestGetCurrentOrderBookErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{name: "non-200", status: http.StatusServiceUnavailable, body: `[]`},
		{name: "not json", status: http.StatusOK, body: `<html>`, malformed: true},
		{name: "short triple", status: http.StatusOK, body: `[[1,2]]`, malformed: true},
		{name: "bad count", status: http.StatusOK, body: `[[1,"x",1]]`, malformed: true},
		{name: "zero amount", status: http.StatusOK, body: `[[1,1,0]]`, malformed: true},
		{name: "negative price", status: http.StatusOK, body: `[[-1,1,1]]`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newServer(t, tt.status, tt.body)
			exchange := CreateClient(Options{BaseUrl: server.URL}, nil)

			_, err := exchange.GetCurrentOrderBook(context.Background(), "ETH:USDT")
			require.Error(t, err)
			assert.Equal(t, tt.malformed, errors.Is(err, domain.ErrMalformedBook))
		})
	}
}

func TestGetCurrentOrderBookHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(server.Close)
	exchange := CreateClient(Options{BaseUrl: server.URL}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := exchange.GetCurrentOrderBook(ctx, "ETH:USDT")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
