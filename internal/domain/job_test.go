package domain

import "testing"

func TestJobEncodeDecode(t *testing.T) {
	j := NewJob(42, 7, "req-1")
	data, err := j.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := DecodeJob(data)
	if err != nil {
		t.Fatalf("DecodeJob() error = %v", err)
	}
	if got.BookmarkID != 42 || got.UserID != 7 || got.Correlation() != "req-1" {
		t.Errorf("DecodeJob() = %+v", got)
	}
}

func TestJobNullCorrelation(t *testing.T) {
	got, err := DecodeJob([]byte(`{"bookmark_id":3,"user_id":1,"correlation_id":null}`))
	if err != nil {
		t.Fatalf("DecodeJob() error = %v", err)
	}
	if got.CorrelationID != nil || got.Correlation() != "" {
		t.Errorf("expected no correlation id, got %+v", got)
	}
}

func TestDecodeJobRejectsInvalid(t *testing.T) {
	for _, payload := range []string{"", "not json", `{"user_id":1}`, `{"bookmark_id":0}`} {
		if _, err := DecodeJob([]byte(payload)); err == nil {
			t.Errorf("DecodeJob(%q) should fail", payload)
		}
	}
}
