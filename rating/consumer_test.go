package rating

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetcare/apperrors"
)

type settlement struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	got settlement
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.got.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.got.nacked = true
	f.got.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeRecomputer struct {
	err   error
	calls []int64
}

func (f *fakeRecomputer) Recompute(ctx context.Context, professionalID int64) (*float64, error) {
	f.calls = append(f.calls, professionalID)
	return nil, f.err
}

func delivery(ack amqp.Acknowledger, key, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, RoutingKey: key, DeliveryTag: 1, Body: []byte(body)}
}

func TestConsumer_Handle(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		body      string
		recompErr error
		want      settlement
		wantCall  int64
	}{
		{
			name:     "submitted",
			key:      RKRatingSubmitted,
			body:     `{"event":"rating.submitted","data":{"professional_id":7}}`,
			want:     settlement{acked: true},
			wantCall: 7,
		},
		{
			name:     "deleted with string id",
			key:      RKRatingDeleted,
			body:     `{"event":"rating.deleted","data":{"professional_id":"12"}}`,
			want:     settlement{acked: true},
			wantCall: 12,
		},
		{
			name: "malformed json",
			key:  RKRatingSubmitted,
			body: `{"event":`,
			want: settlement{nacked: true},
		},
		{
			name: "missing id",
			key:  RKRatingSubmitted,
			body: `{"event":"rating.submitted","data":{}}`,
			want: settlement{nacked: true},
		},
		{
			name: "unexpected routing key",
			key:  "booking.created",
			body: `{"event":"rating.submitted","data":{"professional_id":7}}`,
			want: settlement{nacked: true},
		},
		{
			name:      "unknown professional",
			key:       RKRatingSubmitted,
			body:      `{"event":"rating.submitted","data":{"professional_id":99}}`,
			recompErr: apperrors.ErrNotFound,
			want:      settlement{acked: true},
			wantCall:  99,
		},
		{
			name:      "transient failure",
			key:       RKRatingSubmitted,
			body:      `{"event":"rating.submitted","data":{"professional_id":5}}`,
			recompErr: errors.New("connection refused"),
			want:      settlement{nacked: true, requeue: true},
			wantCall:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecomputer{err: tt.recompErr}
			ack := &fakeAcknowledger{}
			NewConsumer(rec, nil).Handle(context.Background(), delivery(ack, tt.key, tt.body))

			assert.Equal(t, tt.want, ack.got)
			if tt.wantCall == 0 {
				assert.Empty(t, rec.calls)
			} else {
				assert.Equal(t, []int64{tt.wantCall}, rec.calls)
			}
		})
	}
}

type chanSource struct {
	ch  chan amqp.Delivery
	err error
}

func (s chanSource) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return s.ch, s.err
}

func TestConsumer_RunDrainsUntilClosed(t *testing.T) {
	rec := &fakeRecomputer{}
	src := chanSource{ch: make(chan amqp.Delivery, 2)}
	acks := []*fakeAcknowledger{{}, {}}
	src.ch <- delivery(acks[0], RKRatingSubmitted, `{"data":{"professional_id":1}}`)
	src.ch <- delivery(acks[1], RKRatingSubmitted, `{"data":{"professional_id":2}}`)
	close(src.ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, NewConsumer(rec, nil).Run(ctx, src))

	assert.Equal(t, []int64{1, 2}, rec.calls)
	for _, a := range acks {
		assert.True(t, a.got.acked)
	}
}

func TestConsumer_RunSourceError(t *testing.T) {
	src := chanSource{err: errors.New("channel closed")}
	err := NewConsumer(&fakeRecomputer{}, nil).Run(context.Background(), src)
	assert.Error(t, err)
}
