// Package web delivers alerts to the in-app inbox. The delivery record is the
// inbox item; live dashboards are notified over Redis pub/sub.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/channel"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// TopicPrefix prefixes the per-user pub/sub channel.
const TopicPrefix = "notifications:"

// Publisher is the subset of *redis.Client used for live updates.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Adapter implements channel.Adapter for the web inbox.
type Adapter struct {
	pub Publisher
	now func() time.Time
}

var _ channel.Adapter = (*Adapter)(nil)

// New creates a web adapter. pub may be nil, in which case no live updates
// are published.
func New(pub Publisher) *Adapter {
	return &Adapter{pub: pub, now: time.Now}
}

// Topic returns the pub/sub channel of userID.
func Topic(userID string) string {
	return TopicPrefix + userID
}

// Channel returns delivery.ChannelWeb.
func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelWeb
}

// Deliver makes the record visible in the inbox. Live-update failures are
// logged and do not fail the delivery.
func (a *Adapter) Deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, _ *delivery.Recipient) (channel.Result, error) {
	result := channel.Result{ProviderRef: rec.ID}
	if a.pub == nil {
		return result, nil
	}

	data, err := json.Marshal(channel.BuildPayload(rec, event, a.now().UTC()))
	if err != nil {
		return channel.Result{}, err
	}

	receivers, err := a.pub.Publish(ctx, Topic(rec.UserID), data).Result()
	if err != nil {
		slog.Warn("Failed to publish live notification",
			"delivery_id", rec.ID,
			"user_id", rec.UserID,
			"error", err,
		)
		return result, nil
	}

	slog.Debug("Published live notification",
		"delivery_id", rec.ID,
		"user_id", rec.UserID,
		"receivers", receivers,
	)
	return result, nil
}
