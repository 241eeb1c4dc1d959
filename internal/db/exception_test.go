package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mineflow/fleet-dispatch/internal/models"
)

func testException(processID string) models.Exception {
	return models.Exception{
		ProcessID:  processID,
		TruckNo:    "MH12AB1234",
		DispatchID: "DSP-001",
		Stage:      models.StageGate,
		Issue:      models.IssueDuplicatePass,
		Detail:     "royalty code reused",
		Severity:   models.SeverityHigh,
		Status:     models.ExceptionOpen,
		Count:      1,
	}
}

func TestMongoExceptionCollection_UpsertFoldsRepeats(t *testing.T) {
	client, err := ConnectMongo()
	if err != nil {
		t.Skipf("failed to create client: %v, skipping integration test", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database("test_mineflow")
	collection := db.Collection("exceptions")
	collection.Drop(context.Background())

	exceptions := &MongoExceptionCollection{Collection: collection}

	first, err := exceptions.UpsertOpenException(context.Background(), testException("proc-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)
	assert.Equal(t, models.ExceptionOpen, first.Status)

	// Same (process, stage, issue) while open folds into one row
	repeat := testException("proc-1")
	repeat.Detail = "royalty code reused again"
	second, err := exceptions.UpsertOpenException(context.Background(), repeat)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Count)
	assert.Equal(t, "royalty code reused again", second.Detail)

	// A different issue at the same stage is a separate row
	other := testException("proc-1")
	other.Issue = models.IssueMissingPass
	third, err := exceptions.UpsertOpenException(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	count, err := exceptions.OpenExceptionCount(context.Background(), "proc-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMongoExceptionCollection_Resolve(t *testing.T) {
	client, err := ConnectMongo()
	if err != nil {
		t.Skipf("failed to create client: %v, skipping integration test", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database("test_mineflow")
	collection := db.Collection("exceptions")
	collection.Drop(context.Background())

	exceptions := &MongoExceptionCollection{Collection: collection}

	created, err := exceptions.UpsertOpenException(context.Background(), testException("proc-2"))
	require.NoError(t, err)

	resolved, err := exceptions.ResolveException(context.Background(), created.ID.Hex(), "supervisor-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExceptionResolved, resolved.Status)
	assert.Equal(t, "supervisor-1", resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	// Resolving again is a no-op, not an error
	again, err := exceptions.ResolveException(context.Background(), created.ID.Hex(), "supervisor-2")
	require.NoError(t, err)
	assert.Equal(t, "supervisor-1", again.ResolvedBy)

	count, err := exceptions.OpenExceptionCount(context.Background(), "proc-2")
	assert.NoError(t, err)
	assert.Zero(t, count)

	// A fresh violation after resolution opens a new row
	fresh, err := exceptions.UpsertOpenException(context.Background(), testException("proc-2"))
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, fresh.ID)
	assert.Equal(t, 1, fresh.Count)
}

func TestMongoExceptionCollection_FindExceptions(t *testing.T) {
	client, err := ConnectMongo()
	if err != nil {
		t.Skipf("failed to create client: %v, skipping integration test", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database("test_mineflow")
	collection := db.Collection("exceptions")
	collection.Drop(context.Background())

	exceptions := &MongoExceptionCollection{Collection: collection}

	_, err = exceptions.UpsertOpenException(context.Background(), testException("proc-3"))
	require.NoError(t, err)
	low := testException("proc-4")
	low.Issue = models.IssueOther
	low.Severity = models.SeverityLow
	_, err = exceptions.UpsertOpenException(context.Background(), low)
	require.NoError(t, err)

	all, err := exceptions.FindExceptions(context.Background(), ExceptionFilter{})
	assert.NoError(t, err)
	assert.Len(t, all, 2)

	high, err := exceptions.FindExceptions(context.Background(), ExceptionFilter{Severity: models.SeverityHigh})
	assert.NoError(t, err)
	assert.Len(t, high, 1)

	byProcess, err := exceptions.FindExceptions(context.Background(), ExceptionFilter{ProcessID: "proc-4"})
	assert.NoError(t, err)
	assert.Len(t, byProcess, 1)
	assert.Equal(t, models.IssueOther, byProcess[0].Issue)
}
