// Package realtime pushes events to connected clients over redis
// pub/sub. Delivery is fire-and-forget; a lost event is acceptable.
package realtime

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Emitter pushes a named event with a JSON payload to a single user's
// channel.
type Emitter interface {
	EmitToUser(userID uint64, event string, payload interface{})
}

// RedisEmitter publishes events to per-user redis channels. The web
// frontend subscribes via a separate gateway.
type RedisEmitter struct {
	pool *redis.Pool
}

// NewRedisEmitter creates an emitter backed by a redis connection pool.
func NewRedisEmitter(addr string) *RedisEmitter {
	return &RedisEmitter{
		pool: &redis.Pool{
			MaxIdle:     10,
			IdleTimeout: 240 * time.Second,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr)
			},
		},
	}
}

type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// EmitToUser publishes the event to user:<id>:events. Errors are logged
// and swallowed.
func (e *RedisEmitter) EmitToUser(userID uint64, event string, payload interface{}) {
	body, err := json.Marshal(envelope{Event: event, Payload: payload, SentAt: time.Now()})
	if err != nil {
		log.Printf("realtime: failed to marshal event %s: %v", event, err)
		return
	}

	conn := e.pool.Get()
	defer conn.Close()

	channel := userChannel(userID)
	if _, err := conn.Do("PUBLISH", channel, body); err != nil {
		log.Printf("realtime: failed to publish to %s: %v", channel, err)
	}
}

// Close releases the underlying connection pool.
func (e *RedisEmitter) Close() error {
	return e.pool.Close()
}

func userChannel(userID uint64) string {
	return "user:" + strconv.FormatUint(userID, 10) + ":events"
}

// NopEmitter drops every event. Used when redis is not configured and
// in tests that do not assert on realtime delivery.
type NopEmitter struct{}

func (NopEmitter) EmitToUser(uint64, string, interface{}) {}
