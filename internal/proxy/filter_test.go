package proxy

import "testing"

func TestFilter_EmptyIncludeCapturesAll(t *testing.T) {
	f, err := NewFilter(nil, nil)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	for _, path := range []string{"/v1/chat/completions", "/v1/messages", "/anything"} {
		if !f.ShouldCapture(path) {
			t.Errorf("expected %s captured with no patterns", path)
		}
	}
}

func TestFilter_IncludeRestricts(t *testing.T) {
	f, err := NewFilter([]string{"/v1/chat/*", "/v1/messages"}, nil)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	cases := []struct {
		path string
		want bool
	}{
		{"/v1/chat/completions", true},
		{"/v1/messages", true},
		{"/v1/models", false},
		{"/v2/chat/completions", false},
	}
	for _, tc := range cases {
		if got := f.ShouldCapture(tc.path); got != tc.want {
			t.Errorf("ShouldCapture(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestFilter_ExcludeWinsOverInclude(t *testing.T) {
	f, err := NewFilter([]string{"*"}, []string{"/v1/models*", "/health"})
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	if f.ShouldCapture("/v1/models") {
		t.Error("expected excluded path rejected")
	}
	if f.ShouldCapture("/v1/models/gpt-4o") {
		t.Error("expected excluded prefix rejected")
	}
	if !f.ShouldCapture("/v1/chat/completions") {
		t.Error("expected unexcluded path captured")
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	if _, err := NewFilter([]string{"["}, nil); err == nil {
		t.Error("expected error for invalid include pattern")
	}
	if _, err := NewFilter(nil, []string{"["}); err == nil {
		t.Error("expected error for invalid exclude pattern")
	}
}
