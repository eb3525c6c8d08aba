package eventbus

import "testing"

func TestFanoutAndDrop(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: CacheRefreshed, Data: "1234"})
	b.Publish(Event{Type: CacheStale})

	if e := <-a; e.Type != CacheRefreshed || e.Time.IsZero() {
		t.Fatalf("a got %+v", e)
	}
	select {
	case e := <-a:
		t.Fatalf("a got dropped event %+v", e)
	default:
	}
	if len(c) != 2 {
		t.Fatalf("c buffered %d, want 2", len(c))
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatal("a not closed")
	}
	b.Publish(Event{Type: CacheFailed})
}
