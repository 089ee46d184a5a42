package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changed struct {
	TenantID string `json:"tenant_id"`
	Kind     string `json:"kind"`
}

func TestToMessage(t *testing.T) {
	msg, err := toMessage(Event{
		Key:     "acme",
		Value:   changed{TenantID: "acme", Kind: "job"},
		Headers: map[string]string{"action": "create"},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("acme"), msg.Key)
	assert.JSONEq(t, `{"tenant_id":"acme","kind":"job"}`, string(msg.Value))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "action", msg.Headers[0].Key)
	assert.Equal(t, []byte("create"), msg.Headers[0].Value)
}

func TestToMessageRejectsUnencodableValue(t *testing.T) {
	_, err := toMessage(Event{Key: "acme", Value: make(chan int)})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[changed]([]byte(`{"tenant_id":"acme","kind":"candidate"}`))
	require.NoError(t, err)
	assert.Equal(t, changed{TenantID: "acme", Kind: "candidate"}, got)

	_, err = DecodeJSON[changed]([]byte(`not json`))
	assert.ErrorIs(t, err, ErrPoison)
}

type fakeWriter struct {
	written []kafkago.Message
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "talent.document-changed")
	require.NoError(t, p.Publish(context.Background(), Event{Key: "acme", Value: changed{TenantID: "acme"}}))
	require.Len(t, w.written, 1)
	assert.Equal(t, []byte("acme"), w.written[0].Key)

	w.err = errors.New("leader not available")
	err := p.Publish(context.Background(), Event{Key: "acme", Value: changed{}})
	assert.ErrorContains(t, err, "talent.document-changed")
}

// fakeReader serves msgs, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	committed []int64
	fetchErrs int
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if r.fetchErrs > 0 {
		r.fetchErrs--
		r.mu.Unlock()
		return kafkago.Message{}, errors.New("broker unreachable")
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerRetriesTransientAndSkipsPoison(t *testing.T) {
	r := &fakeReader{
		fetchErrs: 1,
		msgs: []kafkago.Message{
			{Offset: 1, Value: []byte(`{"tenant_id":"acme"}`)},
			{Offset: 2, Value: []byte(`garbage`)},
			{Offset: 3, Value: []byte(`{"tenant_id":"globex"}`)},
		},
	}
	var (
		mu       sync.Mutex
		attempts = map[string]int{}
	)
	c := newConsumer(r, "talent.document-changed", func(_ context.Context, _, value []byte) error {
		ev, err := DecodeJSON[changed](value)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		attempts[ev.TenantID]++
		if ev.TenantID == "globex" && attempts[ev.TenantID] == 1 {
			return errors.New("redis timeout")
		}
		return nil
	})
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond
	c.fetchPause = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	mu.Lock()
	assert.Equal(t, 2, attempts["globex"])
	assert.Equal(t, 1, attempts["acme"])
	mu.Unlock()
	assert.True(t, r.closed)
}
