package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acks  int
	nacks []bool // requeue flag per Nack
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks = append(f.nacks, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacks = append(f.nacks, requeue)
	return nil
}

func brokerMessage(t *testing.T, job Job, deliveries int32) (amqp.Delivery, *fakeAcknowledger) {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	return amqp.Delivery{
		Acknowledger: ack,
		Headers:      amqp.Table{deliveriesHeader: deliveries},
		Body:         body,
	}, ack
}

func testAMQPQueue() *AMQPQueue {
	return &AMQPQueue{
		name:   "hunt.google_maps",
		logger: discardLogger(),
	}
}

func TestAMQPQueue_ToDeliveryBumpsDeliveryCount(t *testing.T) {
	q := testAMQPQueue()
	job := Job{ID: uuid.New().String(), AgentID: uuid.New().String(), MaxDeliveries: 3, EnqueuedAt: time.Now()}

	msg, _ := brokerMessage(t, job, 2)
	d, err := q.toDelivery(msg)
	require.NoError(t, err)

	assert.Equal(t, 3, d.Job.Deliveries, "the header count must be bumped before the worker sees the job")
	assert.Equal(t, job.ID, d.Job.ID)
}

func TestAMQPQueue_ToDeliveryRejectsMalformed(t *testing.T) {
	q := testAMQPQueue()

	_, err := q.toDelivery(amqp.Delivery{Body: []byte("{not json")})
	assert.Error(t, err)

	body, marshalErr := json.Marshal(Job{ID: "not-a-uuid"})
	require.NoError(t, marshalErr)
	_, err = q.toDelivery(amqp.Delivery{Body: body})
	assert.Error(t, err)
}

func TestAMQPQueue_FailRequeueRepublishesWithBumpedCount(t *testing.T) {
	q := testAMQPQueue()

	var republished []Job
	q.publish = func(ctx context.Context, job Job) error {
		republished = append(republished, job)
		return nil
	}

	job := Job{ID: uuid.New().String(), MaxDeliveries: 3}
	msg, ack := brokerMessage(t, job, 1)

	d, err := q.toDelivery(msg)
	require.NoError(t, err)
	require.NoError(t, d.Fail(true))

	// Requeue goes through republish-then-ack, never a broker nack, so the
	// delivery count carried in the headers stays authoritative.
	require.Len(t, republished, 1)
	assert.Equal(t, 2, republished[0].Deliveries)
	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, ack.nacks)
}

func TestAMQPQueue_FailRequeueFallsBackToBrokerRedelivery(t *testing.T) {
	q := testAMQPQueue()
	q.publish = func(ctx context.Context, job Job) error {
		return errors.New("channel closed")
	}

	job := Job{ID: uuid.New().String(), MaxDeliveries: 3}
	msg, ack := brokerMessage(t, job, 1)

	d, err := q.toDelivery(msg)
	require.NoError(t, err)
	require.NoError(t, d.Fail(true))

	require.Len(t, ack.nacks, 1)
	assert.True(t, ack.nacks[0], "a failed republish must fall back to a broker requeue")
	assert.Zero(t, ack.acks)
}

func TestAMQPQueue_FailWithoutRequeueDropsJob(t *testing.T) {
	q := testAMQPQueue()

	job := Job{ID: uuid.New().String(), MaxDeliveries: 1}
	msg, ack := brokerMessage(t, job, 1)

	d, err := q.toDelivery(msg)
	require.NoError(t, err)
	require.NoError(t, d.Fail(false))

	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])
}
