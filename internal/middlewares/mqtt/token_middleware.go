package mqtt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benmeehan/live-location/internal/models"
	"github.com/benmeehan/live-location/pkg/jwt"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ErrNoSubject is returned when publishing without a configured subject.
var ErrNoSubject = errors.New("token middleware has no subject to sign for")

// TokenMiddleware signs outgoing payloads and verifies incoming ones.
//
// Outgoing payloads are wrapped as {"jwt": ..., "payload": ...}. Incoming
// messages must carry a token whose subject equals the last topic segment;
// anything else is dropped before the callback sees it.
type TokenMiddleware struct {
	next    MQTTMiddleware
	tokens  jwt.TokenManagerInterface
	subject string
	logger  zerolog.Logger
}

// NewTokenMiddleware creates a token middleware. subject is the user id
// tokens are issued for and may be empty on verify-only consumers.
func NewTokenMiddleware(tokens jwt.TokenManagerInterface, subject string, logger zerolog.Logger) *TokenMiddleware {
	return &TokenMiddleware{
		tokens:  tokens,
		subject: subject,
		logger:  logger,
	}
}

// Init checks the middleware has what it needs.
func (m *TokenMiddleware) Init(_ interface{}) error {
	if m.tokens == nil {
		return errors.New("token manager is nil")
	}
	return nil
}

// SetNext sets the next middleware in the chain.
func (m *TokenMiddleware) SetNext(next MQTTMiddleware) {
	m.next = next
}

// Publish signs payload and forwards the wrapped message.
func (m *TokenMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	if m.subject == "" {
		return ErrNoSubject
	}

	raw, err := canonicalPayload(payload)
	if err != nil {
		return err
	}

	token, err := m.tokens.Sign(m.subject, raw)
	if err != nil {
		return fmt.Errorf("failed to sign payload: %w", err)
	}

	wrapped, err := json.Marshal(models.WrappedPayload{JWT: token, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to wrap payload: %w", err)
	}

	return m.next.Publish(topic, qos, retained, wrapped)
}

// Subscribe forwards the subscription with a verifying callback.
func (m *TokenMiddleware) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	return m.next.Subscribe(topic, qos, func(client mqttLib.Client, msg mqttLib.Message) {
		inner, err := m.verify(msg)
		if err != nil {
			m.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping unverified message")
			return
		}
		callback(client, &unwrappedMessage{Message: msg, payload: inner})
	})
}

// Unsubscribe passes through.
func (m *TokenMiddleware) Unsubscribe(topics ...string) error {
	return m.next.Unsubscribe(topics...)
}

func (m *TokenMiddleware) verify(msg mqttLib.Message) ([]byte, error) {
	var wrapped models.WrappedPayload
	if err := json.Unmarshal(msg.Payload(), &wrapped); err != nil {
		return nil, fmt.Errorf("malformed wrapped payload: %w", err)
	}
	if wrapped.JWT == "" {
		return nil, errors.New("missing token")
	}

	claims, err := m.tokens.Verify(wrapped.JWT, wrapped.Payload)
	if err != nil {
		return nil, err
	}

	if want := lastSegment(msg.Topic()); claims.Subject != want {
		return nil, fmt.Errorf("token subject %q does not match topic user %q", claims.Subject, want)
	}
	return wrapped.Payload, nil
}

// canonicalPayload returns payload in the form it takes inside the wrapper:
// the encoder compacts embedded JSON and escapes HTML characters, and the
// token must cover the bytes the subscriber will hash.
func canonicalPayload(payload interface{}) ([]byte, error) {
	var raw []byte
	switch p := payload.(type) {
	case []byte:
		raw = p
	case string:
		raw = []byte(p)
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}

	canonical, err := json.Marshal(json.RawMessage(raw))
	if err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return canonical, nil
}

func lastSegment(topic string) string {
	return topic[strings.LastIndex(topic, "/")+1:]
}

// unwrappedMessage exposes the verified inner payload.
type unwrappedMessage struct {
	mqttLib.Message
	payload []byte
}

func (u *unwrappedMessage) Payload() []byte { return u.payload }
