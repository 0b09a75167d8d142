package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishBatchEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "search-events")
	err := p.PublishBatch(context.Background(), []Event{
		{Key: "exact", Value: map[string]int{"n": 1}},
		{Key: "prefix", Value: map[string]int{"n": 2}},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 2)
	assert.Equal(t, "exact", string(w.written[0].Key))
	assert.JSONEq(t, `{"n":2}`, string(w.written[1].Value))
}

func TestPublishBatchFailsBeforeWriting(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t")
	err := p.PublishBatch(context.Background(), []Event{
		{Key: "ok", Value: 1},
		{Key: "bad", Value: make(chan int)},
	})
	assert.Error(t, err)
	assert.Empty(t, w.written)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "t")
	err := p.Publish(context.Background(), Event{Key: "k", Value: 1})
	assert.ErrorIs(t, err, boom)
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestConsumerCommitsOnlyHandled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"reason":"a"}`)},
			{Offset: 2, Value: []byte(`not json`)},
			{Offset: 3, Value: []byte(`{"reason":"c"}`)},
		},
	}
	var reasons []string
	c := newConsumer(r, "index-rebuild", func(_ context.Context, _ []byte, value []byte) error {
		req, err := DecodeJSON[RebuildRequest](value)
		if err != nil {
			return err
		}
		reasons = append(reasons, req.Reason)
		return nil
	})

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, []string{"a", "c"}, reasons)
	assert.Equal(t, []int64{1, 3}, r.committed)
	assert.True(t, r.closed)
}

func TestDecodeJSON(t *testing.T) {
	raw, err := json.Marshal(RebuildRequest{Reason: "manual"})
	require.NoError(t, err)
	req, err := DecodeJSON[RebuildRequest](raw)
	require.NoError(t, err)
	assert.Equal(t, "manual", req.Reason)

	_, err = DecodeJSON[RebuildRequest]([]byte("{"))
	assert.Error(t, err)
}
