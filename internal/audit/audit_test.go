package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/unified-pay/internal/domain"
)

type published struct {
	subject string
	data    []byte
}

type fakeStream struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.msgs))}, nil
}

func event() domain.Event {
	return domain.Event{
		TransactionID: uuid.New(),
		Kind:          domain.KindTransfer,
		Outcome:       domain.StateCommitted,
		Sequence:      7,
		OccurredAt:    time.Now().UTC(),
	}
}

func record(t *testing.T, e domain.Event) domain.OutboxRecord {
	t.Helper()
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	return domain.OutboxRecord{ID: uuid.New(), TransactionID: e.TransactionID, Payload: payload, Status: domain.OutboxStatusPending}
}

func TestSubject(t *testing.T) {
	e := event()
	assert.Equal(t, "unifiedpay.ledger.events.transfer.committed", Subject(e))

	e.Kind, e.Outcome = domain.KindBurn, domain.StateRejected
	assert.Equal(t, "unifiedpay.ledger.events.burn.rejected", Subject(e))
}

func TestNATSPublisher_Publish(t *testing.T) {
	stream := &fakeStream{}
	p := NewNATSPublisher(stream, slog.Default())
	e := event()

	require.NoError(t, p.Publish(context.Background(), record(t, e)))
	require.Len(t, stream.msgs, 1)
	assert.Equal(t, Subject(e), stream.msgs[0].subject)

	var got domain.Event
	require.NoError(t, json.Unmarshal(stream.msgs[0].data, &got))
	assert.Equal(t, e.TransactionID, got.TransactionID)
	assert.Equal(t, int64(7), got.Sequence)
}

func TestNATSPublisher_PublishRejectsBadPayload(t *testing.T) {
	p := NewNATSPublisher(&fakeStream{}, slog.Default())
	err := p.Publish(context.Background(), domain.OutboxRecord{ID: uuid.New(), Payload: []byte("{")})
	require.Error(t, err)
}

func TestNATSPublisher_EmitSwallowsFailure(t *testing.T) {
	stream := &fakeStream{err: errors.New("no responders")}
	p := NewNATSPublisher(stream, slog.Default())
	p.Emit(context.Background(), event())
	assert.Empty(t, stream.msgs)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))
	e := event()
	e.Outcome = domain.StateRejected
	e.ReasonCode = domain.ReasonInsufficientFunds

	sink.Emit(context.Background(), e)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ledger event", line["msg"])
	assert.Equal(t, e.TransactionID.String(), line["transaction_id"])
	assert.Equal(t, "INSUFFICIENT_FUNDS", line["reason"])
}

type countingSink struct{ n int }

func (c *countingSink) Emit(context.Context, domain.Event) { c.n++ }

func TestMultiSink(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), event())
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}

type fakeOutbox struct {
	records  []domain.OutboxRecord
	statuses map[uuid.UUID]domain.OutboxStatus
	err      error
}

func (f *fakeOutbox) DispatchOutbox(ctx context.Context, limit, maxAttempts int, publish func(context.Context, domain.OutboxRecord) error) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, rec := range f.records {
		if err := publish(ctx, rec); err != nil {
			f.statuses[rec.ID] = domain.OutboxStatusPending
			continue
		}
		f.statuses[rec.ID] = domain.OutboxStatusDispatched
		n++
	}
	return n, nil
}

type flakyPublisher struct {
	failFor uuid.UUID
	seen    []uuid.UUID
}

func (p *flakyPublisher) Publish(_ context.Context, rec domain.OutboxRecord) error {
	if rec.ID == p.failFor {
		return errors.New("broker unavailable")
	}
	p.seen = append(p.seen, rec.ID)
	return nil
}

func TestRelay_Poll(t *testing.T) {
	ok, bad := record(t, event()), record(t, event())
	outbox := &fakeOutbox{records: []domain.OutboxRecord{ok, bad}, statuses: map[uuid.UUID]domain.OutboxStatus{}}
	pub := &flakyPublisher{failFor: bad.ID}
	relay := NewRelay(outbox, pub, slog.Default(), time.Second, 5)

	n := relay.poll(context.Background())
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{ok.ID}, pub.seen)
	assert.Equal(t, domain.OutboxStatusDispatched, outbox.statuses[ok.ID])
	assert.Equal(t, domain.OutboxStatusPending, outbox.statuses[bad.ID])
}

func TestRelay_PollStorageError(t *testing.T) {
	relay := NewRelay(&fakeOutbox{err: errors.New("db down")}, &flakyPublisher{}, slog.Default(), time.Second, 5)
	assert.Equal(t, 0, relay.poll(context.Background()))
}

func TestRelay_StartStopsOnCancel(t *testing.T) {
	outbox := &fakeOutbox{statuses: map[uuid.UUID]domain.OutboxStatus{}}
	relay := NewRelay(outbox, &flakyPublisher{}, slog.Default(), 5*time.Millisecond, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Start(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
