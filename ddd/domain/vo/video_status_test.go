package vo

import "testing"

func TestVideoTransitionTable(t *testing.T) {
	allowed := map[VideoStatus]map[VideoTrigger]VideoStatus{
		VideoStatusPending:    {TriggerApprove: VideoStatusApproved, TriggerReject: VideoStatusRejected},
		VideoStatusApproved:   {TriggerReject: VideoStatusRejected, TriggerStart: VideoStatusProcessing},
		VideoStatusProcessing: {TriggerComplete: VideoStatusUploaded, TriggerFail: VideoStatusFailed},
		VideoStatusFailed:     {TriggerRetryReset: VideoStatusPending},
		VideoStatusUploaded:   {TriggerArchive: VideoStatusArchived},
	}

	for _, status := range AllVideoStatuses() {
		for _, trigger := range AllVideoTriggers() {
			next, ok := status.Next(trigger)
			want, wantOK := allowed[status][trigger]
			if ok != wantOK {
				t.Fatalf("%s --%s--> allowed=%v, want %v", status, trigger, ok, wantOK)
			}
			if ok && next != want {
				t.Fatalf("%s --%s--> %s, want %s", status, trigger, next, want)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range []VideoStatus{VideoStatusRejected, VideoStatusArchived} {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	if VideoStatusFailed.IsTerminal() {
		t.Fatal("failed can be retried, it is not terminal")
	}
	if !VideoStatusApproved.CanTransitionTo(VideoStatusProcessing) {
		t.Fatal("approved should reach processing")
	}
	if VideoStatusPending.CanTransitionTo(VideoStatusUploaded) {
		t.Fatal("pending must not reach uploaded directly")
	}
}

func TestParseVideoStatus(t *testing.T) {
	if s, ok := ParseVideoStatus("failed"); !ok || s != VideoStatusFailed {
		t.Fatalf("unexpected parse result %q %v", s, ok)
	}
	if _, ok := ParseVideoStatus("done"); ok {
		t.Fatal("unknown status should not parse")
	}
}
