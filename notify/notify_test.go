package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaDispatcherKeysByRecipient(t *testing.T) {
	w := &fakeWriter{}
	d := &KafkaDispatcher{writer: w, topic: "collaboration-notifications"}

	err := d.Send(context.Background(), Notification{
		Kind:        "collaboration_received",
		RecipientID: "venue-1",
		Payload:     map[string]any{"collaborationId": "c1"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "venue-1" {
		t.Fatalf("key = %q", msg.Key)
	}
	var decoded Notification
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Kind != "collaboration_received" || decoded.CreatedAt.IsZero() {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestKafkaDispatcherWrapsWriteErrors(t *testing.T) {
	cause := errors.New("broker down")
	d := &KafkaDispatcher{writer: &fakeWriter{err: cause}, topic: "t"}
	if err := d.Send(context.Background(), Notification{Kind: "k", RecipientID: "r"}); !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewKafkaDispatcherValidates(t *testing.T) {
	if _, err := NewKafkaDispatcher(nil, "t"); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaDispatcher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatalf("expected error without topic")
	}
}
