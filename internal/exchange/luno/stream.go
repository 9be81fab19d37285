package luno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"market-maker-simulator/internal/domain"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const lunoWebsocketBaseUrl = "wss://ws.luno.com/api/1/stream/"

// LunoStream keeps a local book of one pair from Luno's streaming API. Run owns the
// connection; GetCurrentOrderBook may be called from any goroutine.
type LunoStream struct {
	websocketBaseUrl string
	apiKeyId         string
	apiKeySecret     string
	pair             string
	reconnectDelay   time.Duration
	logger           *zap.Logger

	mutex sync.Mutex
	feed  feed
}

func CreateStream(id string, secret string, pair string, logger *zap.Logger) *LunoStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LunoStream{
		websocketBaseUrl: lunoWebsocketBaseUrl,
		apiKeyId:         id,
		apiKeySecret:     secret,
		pair:             pair,
		reconnectDelay:   time.Second,
		logger:           logger,
	}
}

func (stream *LunoStream) GetName() string {
	return domain.LunoStream.String()
}

func (stream *LunoStream) GetCurrentOrderBook(ctx context.Context, pair string) (output domain.OrderBook, err error) {
	if pair != stream.pair {
		return output, fmt.Errorf("luno stream is subscribed to %s, not %s", stream.pair, pair)
	}
	stream.mutex.Lock()
	defer stream.mutex.Unlock()
	return stream.feed.book(pair)
}

// Run subscribes and resubscribes until ctx is done. Any feed error, including a sequence
// gap, drops the local book and starts again from a fresh snapshot.
func (stream *LunoStream) Run(ctx context.Context) error {
	for {
		err := stream.subscribeSocket(ctx)
		if ctx.Err() != nil {
			return nil
		}

		var sequenceErr *SequenceIncorrectError
		if errors.As(err, &sequenceErr) {
			stream.logger.Warn("Sequence number mismatch. Expected: " + strconv.FormatInt(sequenceErr.ExpectedSequence, 10) + ", got: " + strconv.FormatInt(sequenceErr.ActualSequence, 10))
		} else {
			stream.logger.Error("Luno websocket disconnected", zap.Error(err))
		}

		stream.mutex.Lock()
		stream.feed.reset()
		stream.mutex.Unlock()

		stream.logger.Info("Resubscribing to Luno websocket for pair: " + stream.pair)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(stream.reconnectDelay):
		}
	}
}

func (stream *LunoStream) subscribeSocket(ctx context.Context) error {
	stream.logger.Info("Subscribing to Luno websocket for pair: " + stream.pair)

	c, _, err := websocket.Dial(ctx, stream.websocketBaseUrl+stream.pair, nil)
	if err != nil {
		return fmt.Errorf("failed to dial Luno websocket: %w", err)
	}
	defer c.CloseNow()
	c.SetReadLimit(-1)

	if err := stream.sendAuthenticationMessage(ctx, c); err != nil {
		return err
	}

	for {
		messageType, message, err := c.Read(ctx)
		if err != nil {
			return fmt.Errorf("failed to read message from Luno websocket: %w", err)
		}
		if messageType != websocket.MessageText {
			stream.logger.Warn("Received unknown message type from Luno websocket: " + strconv.Itoa(int(messageType)))
			continue
		}

		stream.mutex.Lock()
		err = stream.feed.apply(message)
		stream.mutex.Unlock()
		if err != nil {
			c.Close(websocket.StatusNormalClosure, "")
			return err
		}
	}
}

func (stream *LunoStream) sendAuthenticationMessage(ctx context.Context, c *websocket.Conn) error {
	authMessage := LunoWebsocketAuthenticationRequest{
		ApiKeyId:     stream.apiKeyId,
		ApiKeySecret: stream.apiKeySecret,
	}
	authMessageBytes, err := json.Marshal(authMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal authentication message: %w", err)
	}

	if err := c.Write(ctx, websocket.MessageText, authMessageBytes); err != nil {
		return fmt.Errorf("failed to send authentication message to Luno websocket: %w", err)
	}
	return nil
}
