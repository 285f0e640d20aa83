package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName     = "BID_EVENTS"
	subjectPrefix  = "bid.accepted."
	publishTimeout = 5 * time.Second
)

// NATSPublisher はNATS JetStreamへイベントを発行するPublisher実装。
type NATSPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher はNATSへ接続し、イベント用ストリームを準備して
// NATSPublisherを生成する。
func NewNATSPublisher(ctx context.Context, url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + "*"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &NATSPublisher{conn: conn, js: js}, nil
}

// PublishBidAccepted は受理された入札イベントをJetStreamへ発行する。
// サブジェクトはオークションIDごとに分かれる。
func (p *NATSPublisher) PublishBidAccepted(ctx context.Context, event BidAccepted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal bid event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	subject := subjectPrefix + event.AuctionID
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish bid event: %w", err)
	}

	slog.Debug("bid event published",
		slog.String("subject", subject),
		slog.String("auction_id", event.AuctionID),
	)
	return nil
}

// Close はNATS接続をドレインして閉じる。
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		slog.Warn("failed to drain NATS connection", slog.String("error", err.Error()))
	}
}
