package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/segmentio/kafka-go"

	"shared-tasks/internal/config"
	"shared-tasks/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestRelayPublish_KeyedByTaskID(t *testing.T) {
	w := &fakeWriter{}
	r := NewRelay(w)
	task := models.Task{ID: 42, Title: "Buy milk", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	if err := r.Publish(context.Background(), models.UpdatedEvent(task)); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "42" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}

	got, err := DecodeEvent(w.msgs[0].Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(models.UpdatedEvent(task), got); diff != "" {
		t.Fatalf("event (-want +got):\n%s", diff)
	}
}

func TestRelayPublish_WriterError(t *testing.T) {
	boom := errors.New("broker down")
	r := NewRelay(&fakeWriter{err: boom})
	if err := r.Publish(context.Background(), models.DeletedEvent(1)); !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestDecodeEvent_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"unknown type":      `{"type":"taskRenamed","id":1}`,
		"created sans task": `{"type":"taskCreated","id":1}`,
		"id mismatch":       `{"type":"taskUpdated","id":1,"task":{"id":2,"title":"x"}}`,
		"zero id":           `{"type":"taskDeleted","id":0}`,
	}
	for name, payload := range cases {
		if _, err := DecodeEvent([]byte(payload)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeEvent_Deleted(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"taskDeleted","id":9}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != models.TaskDeleted || ev.ID != 9 || ev.Task != nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestNewWriter_FlushesPromptly(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "task-events"})
	defer w.Close()

	stats := w.Stats()
	if stats.BatchTimeout <= 0 || stats.BatchTimeout > 50*time.Millisecond {
		t.Fatalf("events would wait %v in a partial batch", stats.BatchTimeout)
	}
	if !w.Async {
		t.Fatal("publishing must not block the request")
	}
}
