// Package mqttclient subscribes to recording announcements. Uploaders
// publish a message when a new recording lands in the bucket, and the
// subscriber feeds the transcription queue without waiting for the next
// batch listing.
package mqttclient

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/snarg/lectern/internal/metrics"
)

// Announcement is the expected message payload. A payload that is not a
// JSON object is treated as a bare recording key.
type Announcement struct {
	Key   string `json:"key"`
	Force bool   `json:"force,omitempty"`
}

// EnqueueFunc pushes one announced recording into the transcription queue
// and reports whether it was accepted.
type EnqueueFunc func(key string, force bool) bool

// Stats counts announcement handling since startup.
type Stats struct {
	Received int64 `json:"received"`
	Enqueued int64 `json:"enqueued"`
	Dropped  int64 `json:"dropped"`
}

// Subscriber listens on the announcement topics and enqueues recordings.
type Subscriber struct {
	conn      mqtt.Client
	topics    []string
	enqueue   EnqueueFunc
	connected atomic.Bool
	log       zerolog.Logger

	received atomic.Int64
	enqueued atomic.Int64
	dropped  atomic.Int64
}

// Options configures the subscriber connection.
type Options struct {
	BrokerURL string
	ClientID  string
	Topics    string // comma-separated list
	Username  string
	Password  string
	Enqueue   EnqueueFunc
	Log       zerolog.Logger
}

// Connect establishes the broker connection and subscribes. The paho client
// auto-reconnects and resubscribes through the OnConnect handler, so a
// broker restart needs no action here.
func Connect(opts Options) (*Subscriber, error) {
	s := &Subscriber{
		topics:  parseTopics(opts.Topics),
		enqueue: opts.Enqueue,
		log:     opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost).
		SetDefaultPublishHandler(s.onMessage)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	s.conn = mqtt.NewClient(clientOpts)
	token := s.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Subscriber) onConnect(client mqtt.Client) {
	s.connected.Store(true)
	s.log.Info().Strs("topics", s.topics).Msg("mqtt connected, subscribing")

	filters := make(map[string]byte, len(s.topics))
	for _, t := range s.topics {
		filters[t] = 0
	}
	token := client.SubscribeMultiple(filters, nil)
	token.Wait()
	if err := token.Error(); err != nil {
		s.log.Error().Err(err).Msg("mqtt subscribe failed")
	}
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.connected.Store(false)
	s.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.handleMessage(msg.Topic(), msg.Payload())
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.received.Add(1)
	metrics.AnnouncementsTotal.Inc()

	ann, err := parseAnnouncement(payload)
	if err != nil {
		s.dropped.Add(1)
		s.log.Warn().Err(err).Str("topic", topic).Msg("dropping announcement")
		return
	}
	if !validKey(ann.Key) {
		s.dropped.Add(1)
		s.log.Warn().Str("topic", topic).Str("key", ann.Key).Msg("dropping announcement with unsafe key")
		return
	}

	if s.enqueue == nil || !s.enqueue(ann.Key, ann.Force) {
		s.dropped.Add(1)
		s.log.Warn().Str("key", ann.Key).Msg("transcription queue full, dropping announcement")
		return
	}
	s.enqueued.Add(1)
	s.log.Debug().Str("key", ann.Key).Bool("force", ann.Force).Msg("recording announcement enqueued")
}

// IsConnected reports the live broker connection state.
func (s *Subscriber) IsConnected() bool {
	return s.connected.Load()
}

// Stats returns announcement counters.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Enqueued: s.enqueued.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	s.log.Info().Msg("disconnecting mqtt client")
	s.conn.Disconnect(1000)
}

// parseAnnouncement accepts either a JSON Announcement object or a bare
// key string payload.
func parseAnnouncement(payload []byte) (Announcement, error) {
	raw := strings.TrimSpace(string(payload))
	if strings.HasPrefix(raw, "{") {
		var ann Announcement
		if err := json.Unmarshal([]byte(raw), &ann); err != nil {
			return Announcement{}, err
		}
		ann.Key = strings.TrimSpace(ann.Key)
		return ann, nil
	}
	return Announcement{Key: raw}, nil
}

// validKey rejects keys that could escape the cache directory when joined
// into a filesystem path.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == ".." || part == "." {
			return false
		}
	}
	return true
}

func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return []string{"recordings/#"}
	}
	return topics
}
