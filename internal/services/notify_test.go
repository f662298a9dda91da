package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tickethub/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJob() *DeliveryJob {
	return &DeliveryJob{
		OrderID:    "ord000001",
		BuyerName:  "Jane Wanjiku",
		BuyerEmail: "jane@example.com",
		EventTitle: "Nairobi Jazz Night",
		Category:   "VIP",
		Tickets:    []models.Ticket{{ID: "tkt000001", Code: "A1B2C3D4"}},
	}
}

func TestRedisDispatcherEnqueues(t *testing.T) {
	client, mock := redismock.NewClientMock()
	dispatcher := NewRedisDispatcher(client, nil, "notify:jobs")

	job := sampleJob()
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectLPush("notify:jobs", payload).SetVal(1)

	err = dispatcher.Dispatch(context.Background(), job)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDispatcherReportsEnqueueFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	dispatcher := NewRedisDispatcher(client, nil, "notify:jobs")

	job := sampleJob()
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectLPush("notify:jobs", payload).SetErr(errors.New("connection refused"))

	err = dispatcher.Dispatch(context.Background(), job)
	assert.Error(t, err)
}

type failingMailer struct{ err error }

func (m failingMailer) SendTickets(context.Context, *DeliveryJob) error { return m.err }

func TestWorkerParksFailedDeliveries(t *testing.T) {
	client, mock := redismock.NewClientMock()
	f, store := newFakeStore()

	worker := NewNotifyWorker(client, failingMailer{err: errors.New("smtp down")}, store.Audit, "notify:jobs")

	job := sampleJob()
	parked := *job
	parked.Attempt = 1
	parkedPayload, err := json.Marshal(&parked)
	require.NoError(t, err)

	mock.ExpectLPush("notify:jobs:failed", parkedPayload).SetVal(1)

	worker.deliver(context.Background(), job)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, countAction(f.auditActions(), models.AuditNotifyFailed))
}

func TestRequeueFailedDrainsParkedJobs(t *testing.T) {
	client, mock := redismock.NewClientMock()
	_, store := newFakeStore()

	worker := NewNotifyWorker(client, LogMailer{}, store.Audit, "notify:jobs")

	mock.ExpectLMove("notify:jobs:failed", "notify:jobs", "RIGHT", "LEFT").SetVal("job-a")
	mock.ExpectLMove("notify:jobs:failed", "notify:jobs", "RIGHT", "LEFT").SetVal("job-b")
	mock.ExpectLMove("notify:jobs:failed", "notify:jobs", "RIGHT", "LEFT").RedisNil()

	n, err := worker.RequeueFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerAuditsSuccessfulDelivery(t *testing.T) {
	client, _ := redismock.NewClientMock()
	f, store := newFakeStore()

	worker := NewNotifyWorker(client, LogMailer{}, store.Audit, "notify:jobs")
	worker.deliver(context.Background(), sampleJob())

	assert.Equal(t, 1, countAction(f.auditActions(), models.AuditNotifySent))
}
