package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns one response per call and fails once they run out.
func scripted(t *testing.T, responses ...[]UploadJob) StatusFunc {
	return func(context.Context) ([]UploadJob, error) {
		if !assert.NotEmpty(t, responses, "unexpected poll") {
			return nil, errors.New("no more responses")
		}
		next := responses[0]
		responses = responses[1:]
		return next, nil
	}
}

func fiveJobs() *Session {
	return &Session{WrapperID: "w", Jobs: map[string]string{
		"1": "/data/1.csv",
		"2": "/data/2.csv",
		"3": "/data/3.csv",
		"4": "/data/4.csv",
		"5": "/data/5.csv",
	}}
}

func TestPoller_Update(t *testing.T) {
	reporter := newRecordingReporter()
	poller := NewPoller(fiveJobs(), scripted(t,
		[]UploadJob{
			{ID: "1", Status: StatusSuccess},
			{ID: "2", Status: StatusSuccess},
			{ID: "3", Status: StatusProcessing},
			{ID: "4", Status: StatusFailed, Message: "bad header"},
			{ID: "5", Status: StatusFailed},
		},
		[]UploadJob{
			{ID: "1", Status: StatusSuccess},
			{ID: "2", Status: StatusSuccess},
			{ID: "3", Status: StatusSuccess},
		},
		[]UploadJob{
			{ID: "1", Status: StatusSuccess},
			{ID: "2", Status: StatusSuccess},
			{ID: "3", Status: StatusSuccess},
			{ID: "4", Status: StatusSuccess},
			{ID: "5", Status: StatusSuccess},
		},
	), reporter)
	assert.True(t, poller.Ongoing())

	err := poller.Update(context.Background())
	var failed *JobsFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, []FailedJob{
		{ID: "4", Path: "/data/4.csv", Message: "bad header"},
		{ID: "5", Path: "/data/5.csv"},
	}, failed.Jobs)
	assert.EqualError(t, err,
		"upload job failed: file /data/4.csv (upload 4): bad header; file /data/5.csv (upload 5): ")
	assert.True(t, poller.Ongoing())
	assert.Equal(t, []string{"1", "2"}, poller.Succeeded())
	assert.Equal(t, []string{"1", "2"}, reporter.succeeded)

	require.NoError(t, poller.Update(context.Background()))
	assert.Equal(t, []string{"1", "2", "3"}, reporter.succeeded)
	assert.True(t, poller.Ongoing(), "jobs 4 and 5 were not listed")

	require.NoError(t, poller.Update(context.Background()))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, reporter.succeeded)
	assert.False(t, poller.Ongoing())
}

func TestPoller_PendingIsOngoing(t *testing.T) {
	session := &Session{WrapperID: "w", Jobs: map[string]string{"1": "/a.csv"}}
	poller := NewPoller(session, scripted(t,
		[]UploadJob{{ID: "1", Status: StatusPending}},
		[]UploadJob{{ID: "1", Status: StatusSuccess}},
	), newRecordingReporter())

	require.NoError(t, poller.Update(context.Background()))
	assert.True(t, poller.Ongoing())
	require.NoError(t, poller.Update(context.Background()))
	assert.False(t, poller.Ongoing())
}

func TestPoller_ProtocolErrors(t *testing.T) {
	session := &Session{WrapperID: "w", Jobs: map[string]string{"1": "/a.csv"}}

	poller := NewPoller(session, scripted(t, []UploadJob{{ID: "9", Status: StatusSuccess}}), nil)
	assert.ErrorIs(t, poller.Update(context.Background()), ErrUnknownJob)

	poller = NewPoller(session, scripted(t, []UploadJob{{ID: "1", Status: "DONE"}}), nil)
	assert.ErrorIs(t, poller.Update(context.Background()), ErrInvalidStatus)
}

func TestPoller_FetchError(t *testing.T) {
	fetchErr := errors.New("connection reset")
	poller := NewPoller(fiveJobs(), func(context.Context) ([]UploadJob, error) {
		return nil, fetchErr
	}, nil)
	assert.ErrorIs(t, poller.Update(context.Background()), fetchErr)
	assert.True(t, poller.Ongoing())
}

func TestWait_ContextCanceled(t *testing.T) {
	f, server := newFakeAPI(t)
	client := newTestClient(t, server, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Wait(ctx, &Session{WrapperID: "wrapper_id", Jobs: map[string]string{"id1": "/a.csv"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.callCount())
}
