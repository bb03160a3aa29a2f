package entity

import (
	"errors"
	"testing"
	"time"

	"sermon-publisher/ddd/domain/vo"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRecord() *VideoRecord {
	sermon := vo.SermonContent{SourceURL: "https://church.example/s/1", Title: "은혜", Interpretation: "본문"}
	return NewVideoRecord(sermon, "", "batch-1", baseTime)
}

// recordInStatus 通过合法迁移把记录推进到目标状态
func recordInStatus(t *testing.T, status vo.VideoStatus) *VideoRecord {
	t.Helper()
	v := newTestRecord()
	now := baseTime
	step := func(err error) {
		if err != nil {
			t.Fatalf("setup to %s: %v", status, err)
		}
	}
	switch status {
	case vo.VideoStatusPending:
	case vo.VideoStatusApproved:
		step(v.Approve("tester", now))
	case vo.VideoStatusProcessing:
		step(v.Approve("tester", now))
		step(v.Start(now))
	case vo.VideoStatusUploaded, vo.VideoStatusArchived:
		step(v.Approve("tester", now))
		step(v.Start(now))
		step(v.RecordArtifacts(vo.GenerationArtifacts{VideoPath: "/out/v.mp4", OutputBytes: 10}, now))
		step(v.Complete(vo.PublishResult{ExternalID: "yt-1"}, now))
		if status == vo.VideoStatusArchived {
			step(v.Archive(now))
		}
	case vo.VideoStatusFailed:
		step(v.Approve("tester", now))
		step(v.Start(now))
		step(v.Fail(Failure{Message: "ffmpeg exited"}, now))
	case vo.VideoStatusRejected:
		step(v.Reject("off topic", now))
	}
	if v.Status() != status {
		t.Fatalf("setup reached %s, want %s", v.Status(), status)
	}
	return v
}

func fire(v *VideoRecord, trigger vo.VideoTrigger) error {
	now := baseTime.Add(time.Minute)
	switch trigger {
	case vo.TriggerApprove:
		return v.Approve("tester", now)
	case vo.TriggerReject:
		return v.Reject("reason", now)
	case vo.TriggerStart:
		return v.Start(now)
	case vo.TriggerComplete:
		return v.Complete(vo.PublishResult{ExternalID: "yt-2"}, now)
	case vo.TriggerFail:
		return v.Fail(Failure{Message: "boom"}, now)
	case vo.TriggerRetryReset:
		return v.RetryReset(0, now)
	case vo.TriggerArchive:
		return v.Archive(now)
	}
	return errors.New("unknown trigger")
}

func TestVideoRecordRejectsTransitionsOutsideTable(t *testing.T) {
	for _, status := range vo.AllVideoStatuses() {
		for _, trigger := range vo.AllVideoTriggers() {
			if _, ok := status.Next(trigger); ok {
				continue
			}
			v := recordInStatus(t, status)
			before := v.State()
			err := fire(v, trigger)
			if err == nil {
				t.Fatalf("%s --%s--> should be rejected", status, trigger)
			}
			if !IsDomainError(err) {
				t.Fatalf("expected DomainError, got %T", err)
			}
			after := v.State()
			if after.Status != before.Status || after.UpdatedAt != before.UpdatedAt ||
				after.RetryCount != before.RetryCount || after.ErrorMessage != before.ErrorMessage {
				t.Fatalf("%s --%s--> mutated the record", status, trigger)
			}
		}
	}
}

func TestVideoRecordHappyPath(t *testing.T) {
	v := newTestRecord()
	if v.Status() != vo.VideoStatusPending || v.Script() == "" {
		t.Fatalf("unexpected initial record: %s %q", v.Status(), v.Script())
	}
	if err := v.Approve("admin", baseTime); err != nil {
		t.Fatal(err)
	}
	if v.ApprovedBy() != "admin" || v.ApprovedAt() == nil {
		t.Fatal("approval not recorded")
	}
	if err := v.Start(baseTime); err != nil {
		t.Fatal(err)
	}
	if err := v.Complete(vo.PublishResult{ExternalID: "yt"}, baseTime); err == nil {
		t.Fatal("complete without output must fail")
	}
	if v.Status() != vo.VideoStatusProcessing {
		t.Fatal("failed complete must not change status")
	}
	if err := v.RecordArtifacts(vo.GenerationArtifacts{VideoPath: "/out/v.mp4", ThumbnailPath: "/out/v.jpg", OutputBytes: 2048}, baseTime); err != nil {
		t.Fatal(err)
	}
	if err := v.Complete(vo.PublishResult{}, baseTime); err == nil {
		t.Fatal("complete without external id must fail")
	}
	if err := v.Complete(vo.PublishResult{ExternalID: "abc", ExternalURL: "https://www.youtube.com/watch?v=abc"}, baseTime); err != nil {
		t.Fatal(err)
	}
	if v.Status() != vo.VideoStatusUploaded || v.ExternalID() != "abc" || v.ProcessingCompletedAt() == nil {
		t.Fatalf("unexpected uploaded record: %+v", v.State())
	}
	if err := v.Archive(baseTime); err != nil || v.Status() != vo.VideoStatusArchived {
		t.Fatalf("archive failed: %v", err)
	}
}

func TestVideoRecordFailAndRetry(t *testing.T) {
	v := recordInStatus(t, vo.VideoStatusProcessing)
	if err := v.RecordArtifacts(vo.GenerationArtifacts{VideoPath: "/out/v.mp4", OutputBytes: 5}, baseTime); err != nil {
		t.Fatal(err)
	}
	if err := v.Fail(Failure{Message: "upload connection reset"}, baseTime); err != nil {
		t.Fatal(err)
	}
	if v.ErrorCategory() != vo.ErrorCategoryNetwork || v.RetryCount() != 1 {
		t.Fatalf("unexpected failure state: %s %d", v.ErrorCategory(), v.RetryCount())
	}
	if v.VideoPath() == "" {
		t.Fatal("artifacts should survive a publish failure")
	}
	if !v.ScheduleRetry(15 * time.Minute) {
		t.Fatal("expected retry to be scheduled")
	}
	if want := baseTime.Add(30 * time.Minute); !v.NextRetryAt().Equal(want) {
		t.Fatalf("next retry = %v, want %v", v.NextRetryAt(), want)
	}

	if err := v.RetryReset(0, baseTime); err != nil {
		t.Fatal(err)
	}
	if v.Status() != vo.VideoStatusPending || v.ErrorMessage() != "" || v.VideoPath() != "" || v.NextRetryAt() != nil {
		t.Fatalf("retry reset did not clear state: %+v", v.State())
	}
	if v.RetryCount() != 1 {
		t.Fatalf("retry reset must keep retry count, got %d", v.RetryCount())
	}
}

func TestVideoRecordRetryResetGuards(t *testing.T) {
	v := recordInStatus(t, vo.VideoStatusFailed)
	st := v.State()
	st.RetryCount = vo.MaxRetryCount
	v = RestoreVideoRecord(st)
	if err := v.RetryReset(0, baseTime); err == nil {
		t.Fatal("retry limit must block reset")
	}
	if v.Status() != vo.VideoStatusFailed {
		t.Fatal("blocked reset must leave status")
	}
	if err := v.RetryReset(5, baseTime); err != nil {
		t.Fatalf("explicit higher limit should allow reset: %v", err)
	}

	p := recordInStatus(t, vo.VideoStatusProcessing)
	if err := p.Fail(Failure{Message: "permanent failure: 403 forbidden"}, baseTime); err != nil {
		t.Fatal(err)
	}
	if !p.Permanent() || p.RetryEligible(0) {
		t.Fatal("permanent failure must not be retry eligible")
	}
	if p.ScheduleRetry(time.Minute) {
		t.Fatal("permanent failure must not be scheduled")
	}
	if err := p.RetryReset(0, baseTime); err == nil {
		t.Fatal("permanent failure must block reset")
	}
}

func TestFailureFromError(t *testing.T) {
	f := FailureFromError(NewPermanentError("upload", errors.New("400 bad request")))
	if !f.Permanent {
		t.Fatal("permanent kind should mark failure permanent")
	}
	f = FailureFromError(NewTransientError("generate", errors.New("killed")).WithCategory(vo.ErrorCategoryTimeout))
	if f.Category != vo.ErrorCategoryTimeout || f.Permanent {
		t.Fatalf("unexpected failure %+v", f)
	}
}

func TestVideoRecordIsStuck(t *testing.T) {
	v := recordInStatus(t, vo.VideoStatusProcessing)
	if v.IsStuck(baseTime.Add(5*time.Minute), 10*time.Minute) {
		t.Fatal("should not be stuck yet")
	}
	if !v.IsStuck(baseTime.Add(11*time.Minute), 10*time.Minute) {
		t.Fatal("should be stuck")
	}
}

func TestVideoRecordUpdateMetadata(t *testing.T) {
	v := newTestRecord()
	err := v.UpdateMetadata(map[string]interface{}{
		"title":  "새 제목",
		"tags":   []interface{}{"a", "a", "b"},
		"status": "uploaded",
	}, baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if v.Metadata().Title != "새 제목" || len(v.Metadata().Tags) != 2 {
		t.Fatalf("unexpected metadata %+v", v.Metadata())
	}
	if v.Status() != vo.VideoStatusPending {
		t.Fatal("metadata update must not touch status")
	}
	if err := v.UpdateMetadata(map[string]interface{}{"duration": "long"}, baseTime); err == nil {
		t.Fatal("expected type error")
	}
}

func TestVideoRecordBeginPublishRestartsStuckTimer(t *testing.T) {
	v := recordInStatus(t, vo.VideoStatusProcessing)
	if err := v.BeginPublish(baseTime.Add(20 * time.Minute)); err != nil {
		t.Fatalf("begin publish: %v", err)
	}
	if v.IsStuck(baseTime.Add(25*time.Minute), 12*time.Minute) {
		t.Fatal("timer should restart when publishing begins")
	}
	if err := recordInStatus(t, vo.VideoStatusApproved).BeginPublish(baseTime); err == nil {
		t.Fatal("approved record cannot begin publishing")
	}
}

func TestVideoRecordRecordLatePublish(t *testing.T) {
	v := recordInStatus(t, vo.VideoStatusProcessing)
	if err := v.Fail(Failure{Message: "processing timeout", Category: vo.ErrorCategoryTimeout}, baseTime); err != nil {
		t.Fatalf("fail: %v", err)
	}
	v.ScheduleRetry(15 * time.Minute)

	if err := v.RecordLatePublish(vo.PublishResult{}, baseTime); err == nil {
		t.Fatal("empty external id must be rejected")
	}
	if err := v.RecordLatePublish(vo.PublishResult{ExternalID: "yt-9", ExternalURL: "https://youtu.be/yt-9"}, baseTime); err != nil {
		t.Fatalf("record late publish: %v", err)
	}
	if v.Status() != vo.VideoStatusFailed || v.ExternalID() != "yt-9" {
		t.Fatalf("unexpected state %s %q", v.Status(), v.ExternalID())
	}
	if v.NextRetryAt() != nil || v.RetryEligible(0) {
		t.Fatal("late publish must cancel automatic retry")
	}
	if err := recordInStatus(t, vo.VideoStatusUploaded).RecordLatePublish(vo.PublishResult{ExternalID: "x"}, baseTime); err == nil {
		t.Fatal("only failed records accept a late publish")
	}
}
