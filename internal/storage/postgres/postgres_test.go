package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestSaveResultUpsertsRow(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store, err := NewResultStore(mock, "")
	require.NoError(t, err)

	finished := time.Unix(1700000000, 0).UTC()
	rec := crawler.ResultRecord{
		JobID: "job-1",
		Result: crawler.Result{
			ID:          "crawl-1",
			Seed:        "http://a.test/",
			Origin:      "http://a.test",
			Nodes:       []string{"http://a.test/", "http://a.test/b"},
			Fingerprint: "abc",
		},
		BlobURI:    "gs://bucket/crawls/job-1.json",
		FinishedAt: finished,
	}
	mock.ExpectExec("INSERT INTO crawl_results").
		WithArgs(
			"job-1", "crawl-1", "http://a.test/", "http://a.test", 2,
			[]byte(`["http://a.test/","http://a.test/b"]`),
			[]byte(`[]`),
			"abc",
			pgxmock.AnyArg(),
			"gs://bucket/crawls/job-1.json",
			finished,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveResult(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())

	require.Error(t, store.SaveResult(context.Background(), crawler.ResultRecord{}))
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	_, err := NewResultStore(mock, "results; DROP TABLE x")
	require.Error(t, err)
	_, err = NewJobStore(mock, "1jobs")
	require.Error(t, err)
	_, err = NewJobStore(nil, "")
	require.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobs").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crawl_results").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, EnsureSchema(context.Background(), mock, "jobs", ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store, err := NewJobStore(mock, "")
	require.NoError(t, err)
	ctx := context.Background()
	submitted := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO crawl_jobs").
		WithArgs("job-1", "queued", submitted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.CreateJob(ctx, crawler.Job{
		ID:        "job-1",
		Status:    crawler.JobStatusQueued,
		Submitted: submitted,
		Parameters: crawler.JobParameters{
			Request: crawler.Request{Seed: "http://a.test/", MaxConcurrency: 2},
		},
	}))

	mock.ExpectExec("UPDATE crawl_jobs SET status").
		WithArgs("job-1", "running", submitted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.StartJob(ctx, "job-1", submitted))

	mock.ExpectExec("UPDATE crawl_jobs SET status").
		WithArgs("missing", "running", submitted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, store.StartJob(ctx, "missing", submitted), crawler.ErrJobNotFound)

	mock.ExpectExec("UPDATE crawl_jobs SET status").
		WithArgs("job-1", "succeeded", submitted, "", pgxmock.AnyArg(), "memory://x").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.FinishJob(ctx, "job-1", crawler.JobOutcome{
		Status:     crawler.JobStatusSucceeded,
		FinishedAt: submitted,
		Result:     &crawler.Result{Nodes: []string{"http://a.test/"}},
		BlobURI:    "memory://x",
	}))

	started := submitted.Add(time.Second)
	rows := pgxmock.NewRows([]string{
		"id", "status", "submitted_at", "started_at", "finished_at", "error_text", "parameters", "result", "blob_uri",
	}).AddRow(
		"job-1", "succeeded", submitted, &started, &started, "",
		[]byte(`{"request":{"seed":"http://a.test/","max_concurrency":2}}`),
		[]byte(`{"nodes":["http://a.test/"]}`),
		"memory://x",
	)
	mock.ExpectQuery("SELECT id, status").WithArgs("job-1").WillReturnRows(rows)
	job, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusSucceeded, job.Status)
	require.Equal(t, "http://a.test/", job.Parameters.Request.Seed)
	require.Equal(t, []string{"http://a.test/"}, job.Result.Nodes)
	require.Equal(t, started, *job.Started)

	mock.ExpectQuery("SELECT id, status").WithArgs("nope").WillReturnError(pgx.ErrNoRows)
	_, err = store.GetJob(ctx, "nope")
	require.ErrorIs(t, err, crawler.ErrJobNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
