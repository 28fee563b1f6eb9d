package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/babui-rent/babui/internal/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func event(kind domain.ChangeKind, id string) domain.ChangeEvent {
	return domain.ChangeEvent{
		Kind:       kind,
		PropertyID: id,
		Property:   domain.Property{ID: id, Title: "Flat " + id},
		At:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHubBroadcasts(t *testing.T) {
	hub := NewHub(4, quiet)
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Publish(event(domain.ChangeAdded, "p1"))

	for _, sub := range []*Subscription{a, b} {
		select {
		case data := <-sub.C:
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			if m.Kind != domain.ChangeAdded || m.PropertyID != "p1" || m.Property == nil || m.Property.Title != "Flat p1" {
				t.Fatalf("unexpected message %+v", m)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestRemovalMessageOmitsProperty(t *testing.T) {
	m := NewMessage(event(domain.ChangeRemoved, "p1"))
	if m.Property != nil {
		t.Fatalf("removal carried a property: %+v", m.Property)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(1, quiet)
	slow := hub.Subscribe()

	hub.Publish(event(domain.ChangeAdded, "p1"))
	hub.Publish(event(domain.ChangeAdded, "p2"))

	if hub.Len() != 0 {
		t.Fatalf("slow subscriber still registered")
	}
	<-slow.C
	if _, ok := <-slow.C; ok {
		t.Fatal("expected channel closed after drop")
	}
	slow.Close()
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub(1, quiet)
	s := hub.Subscribe()
	s.Close()
	s.Close()
	hub.Shutdown()
	if hub.Len() != 0 {
		t.Fatalf("Len = %d", hub.Len())
	}
}

type fakeToken struct{ err error }

func (f *fakeToken) Wait() bool                       { return true }
func (f *fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (f *fakeToken) Error() error { return f.err }

type published struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	mu           sync.Mutex
	messages     []published
	disconnected bool
	got          chan struct{}
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	f.messages = append(f.messages, published{topic: topic, payload: payload.([]byte)})
	f.mu.Unlock()
	f.got <- struct{}{}
	return &fakeToken{}
}

func (f *fakeMQTT) Disconnect(uint) {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func TestMQTTPublisher(t *testing.T) {
	client := &fakeMQTT{got: make(chan struct{}, 4)}
	pub := newMQTTPublisher(client, "babui/", quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()

	pub.Handle(event(domain.ChangeUpdated, "p7"))
	select {
	case <-client.got:
	case <-time.After(2 * time.Second):
		t.Fatal("event not published")
	}
	cancel()
	<-done

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.messages) != 1 {
		t.Fatalf("published %d messages", len(client.messages))
	}
	if client.messages[0].topic != "babui/properties/p7/updated" {
		t.Fatalf("topic = %q", client.messages[0].topic)
	}
	var m Message
	if err := json.Unmarshal(client.messages[0].payload, &m); err != nil || m.PropertyID != "p7" {
		t.Fatalf("payload = %s, err %v", client.messages[0].payload, err)
	}
	if !client.disconnected {
		t.Fatal("Run did not disconnect on shutdown")
	}
}
