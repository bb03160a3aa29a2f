package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
)

func batchItemJob() vo.VideoJob {
	return vo.VideoJob{
		JobID:       "job-1",
		Kind:        vo.JobKindBatchItem,
		BatchID:     "batch-1",
		SourceURL:   "https://church.example/sermons/1",
		AutoApprove: true,
	}
}

func TestProcessBatchItemReportsSuccessOnce(t *testing.T) {
	videos := openTestRepo(t)
	pipeline := &fakePipeline{}
	batches := &recordingBatches{}
	app := NewIngestAppWith(videos, fakeFetcher{}, pipeline, batches)

	if err := app.HandleJob(context.Background(), batchItemJob()); err != nil {
		t.Fatalf("handle job: %v", err)
	}
	if len(batches.outcomes) != 1 || batches.outcomes[0] != vo.ItemSucceeded {
		t.Fatalf("expected exactly one success report, got %v", batches.outcomes)
	}
	if len(pipeline.calls) != 1 || !pipeline.calls[0].AutoApprove || pipeline.calls[0].ApprovedBy != batchApprover {
		t.Fatalf("unexpected pipeline calls %+v", pipeline.calls)
	}

	ids, err := videos.FindIDs(context.Background(), repo.VideoQuery{})
	if err != nil || len(ids) != 1 {
		t.Fatalf("expected one created record, got %v %v", ids, err)
	}
	v := mustGet(t, videos, ids[0])
	if v.BatchID() != "batch-1" || v.Script() == "" || v.Sermon().SourceURL != batchItemJob().SourceURL {
		t.Fatalf("unexpected record %+v", v.State())
	}
}

func TestProcessBatchItemReportsFetchFailure(t *testing.T) {
	videos := openTestRepo(t)
	pipeline := &fakePipeline{}
	batches := &recordingBatches{}
	fetchErr := entity.NewPermanentError("fetch source", errors.New("HTTP 404"))
	app := NewIngestAppWith(videos, fakeFetcher{err: fetchErr}, pipeline, batches)

	err := app.HandleJob(context.Background(), batchItemJob())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(batches.outcomes) != 1 || batches.outcomes[0] != vo.ItemFailed {
		t.Fatalf("expected exactly one failure report, got %v", batches.outcomes)
	}
	if len(pipeline.calls) != 0 {
		t.Fatalf("pipeline must not run when fetch fails")
	}
}

func TestProcessBatchItemReportsPipelineFailure(t *testing.T) {
	batches := &recordingBatches{}
	pipeline := &fakePipeline{err: entity.NewTransientError("publish", errors.New("503"))}
	app := NewIngestAppWith(openTestRepo(t), fakeFetcher{}, pipeline, batches)

	if err := app.HandleJob(context.Background(), batchItemJob()); err == nil {
		t.Fatalf("expected pipeline error")
	}
	if len(batches.outcomes) != 1 || batches.outcomes[0] != vo.ItemFailed || batches.details[0] == "" {
		t.Fatalf("expected one failure report with detail, got %v %v", batches.outcomes, batches.details)
	}
}

func TestProcessBatchItemReportsPanicAsFailure(t *testing.T) {
	batches := &recordingBatches{}
	pipeline := &fakePipeline{panicV: "nil deref in compositor"}
	app := NewIngestAppWith(openTestRepo(t), fakeFetcher{}, pipeline, batches)

	var recovered interface{}
	func() {
		defer func() { recovered = recover() }()
		_ = app.HandleJob(context.Background(), batchItemJob())
	}()
	if recovered == nil {
		t.Fatal("panic should reach the caller after reporting")
	}
	if len(batches.outcomes) != 1 || batches.outcomes[0] != vo.ItemFailed {
		t.Fatalf("expected exactly one failure report, got %v", batches.outcomes)
	}
	if !strings.Contains(batches.details[0], "nil deref in compositor") {
		t.Fatalf("panic value missing from detail %q", batches.details[0])
	}
}

func TestHandleVideoJob(t *testing.T) {
	pipeline := &fakePipeline{}
	batches := &recordingBatches{}
	app := NewIngestAppWith(openTestRepo(t), fakeFetcher{}, pipeline, batches)

	job := vo.VideoJob{JobID: "j", Kind: vo.JobKindVideo, VideoID: "v-1", AutoApprove: true, ApprovedBy: "ops"}
	if err := app.HandleJob(context.Background(), job); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pipeline.calls) != 1 || pipeline.calls[0].ApprovedBy != "ops" {
		t.Fatalf("unexpected calls %+v", pipeline.calls)
	}
	if len(batches.outcomes) != 0 {
		t.Fatalf("video jobs do not report batch outcomes")
	}

	if err := app.HandleJob(context.Background(), vo.VideoJob{Kind: vo.JobKindVideo}); !entity.IsKind(err, entity.KindValidation) {
		t.Fatalf("expected validation error for job without video id, got %v", err)
	}
}
