package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// envelope is the wire form of a status change on the Redis channel. Origin
// identifies the publishing instance so the relay can skip its own events.
type envelope struct {
	Origin string `json:"origin"`
	TaskID string `json:"taskId"`
	Done   bool   `json:"done"`
}

// Relay mirrors local status changes to a Redis channel and re-injects
// changes published by other instances into the local bus.
type Relay struct {
	bus     *StatusBus
	rc      *redis.Client
	channel string
	origin  string
	logger  *log.Logger
}

func NewRelay(b *StatusBus, rc *redis.Client, channel, origin string, logger *log.Logger) *Relay {
	r := &Relay{bus: b, rc: rc, channel: channel, origin: origin, logger: logger}
	b.setMirror(r.mirror)
	return r
}

func (r *Relay) mirror(ch domain.StatusChange) {
	data, err := json.Marshal(envelope{Origin: r.origin, TaskID: ch.TaskID, Done: ch.Done})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.rc.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.WithError(err).Errorf("unable to mirror status change for task %s", ch.TaskID)
	}
}

// Run consumes the Redis channel until ctx ends, reconnecting if the
// subscription channel closes.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.WithError(err).Error("unable to parse status change")
					continue
				}
				if env.Origin == r.origin {
					continue
				}
				r.bus.publishLocal(domain.StatusChange{TaskID: env.TaskID, Done: env.Done})
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("status relay channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
