package runstorage

import (
	"context"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/markers"
	"github.com/guregu/dynamo"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/dynamo"
	"github.com/veedubyou/karaoke-worker/src/shared/lib/errors/mark"
	"github.com/veedubyou/karaoke-worker/src/shared/run/entity"
)

const (
	RunsTable = "KaraokeRuns"
)

var _ runentity.Store = DB{}

type DB struct {
	dynamoDB dynamolib.DynamoDBWrapper
}

func NewDB(dynamoDB dynamolib.DynamoDBWrapper) DB {
	return DB{
		dynamoDB: dynamoDB,
	}
}

func (d DB) GetRun(ctx context.Context, runID string) (runentity.Run, error) {
	run, _, err := d.getRun(ctx, runID)
	return run, err
}

func (d DB) getRun(ctx context.Context, runID string) (runentity.Run, any, error) {
	if runID == "" {
		return runentity.Run{}, nil, mark.Message(IDEmptyMark, "No run ID was provided")
	}

	value := dbRun{}
	err := d.dynamoDB.Table(RunsTable).
		Get(idKey, runID).
		OneWithContext(ctx, &value)

	if err != nil {
		switch {
		case markers.Is(err, UnmarshalMark):
			return runentity.Run{}, nil, errors.Wrap(err, "Failed to fetch run")
		case errors.Is(err, dynamo.ErrNotFound):
			return runentity.Run{}, nil, mark.Wrap(err, RunNotFound, "Run is not found")
		default:
			return runentity.Run{}, nil, mark.Wrap(err, DefaultErrorMark, "Failed to fetch run")
		}
	}

	run := runentity.Run{}
	err = run.FromMap(value)
	if err != nil {
		return runentity.Run{}, nil,
			mark.Wrap(err, UnmarshalMark, "Failed to transform DB map back to entity run")
	}

	return run, value[updatedAtKey], nil
}

func (d DB) SetRun(ctx context.Context, run runentity.Run) error {
	if run.Defined.ID == "" {
		return mark.Message(IDEmptyMark, "Run ID is not defined")
	}

	dbObject, err := run.ToMap()
	if err != nil {
		return mark.Wrap(err, MarshalMark, "Failed to transform entity run to a generic map object")
	}

	err = d.dynamoDB.Table(RunsTable).Put(dbObject).RunWithContext(ctx)
	if err != nil {
		return mark.Wrap(err, DefaultErrorMark, "Failed to put the run in the DB")
	}

	return nil
}

// UpdateRun is a read-modify-write guarded on updated_at, so two writers
// racing on one run can't silently drop each other's changes
func (d DB) UpdateRun(ctx context.Context, runID string, updater runentity.RunUpdater) error {
	run, lastUpdatedAt, err := d.getRun(ctx, runID)
	if err != nil {
		return errors.Wrap(err, "Can't find the run")
	}

	updatedRun, err := updater(run)
	if err != nil {
		return mark.Wrap(err, DefaultErrorMark, "The updater failed to make changes to the run")
	}

	if updatedRun.Defined.ID != runID {
		return mark.Message(IDEmptyMark, "The updater changed the run ID")
	}

	dbObject, err := updatedRun.ToMap()
	if err != nil {
		return mark.Wrap(err, MarshalMark, "Failed to marshal run entity to map")
	}

	err = d.dynamoDB.Table(RunsTable).
		Put(dbObject).
		If("$ = ?", updatedAtKey, lastUpdatedAt).
		RunWithContext(ctx)

	if err != nil {
		if conditionalCheckFailed(err) {
			return mark.Wrap(err, ConflictMark, "Run was updated by someone else")
		}

		return mark.Wrap(err, DefaultErrorMark, "Failed to put the updated run")
	}

	return nil
}

func conditionalCheckFailed(err error) bool {
	var condErr *dynamodb.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}
