package video

import (
	"context"
	"errors"
	"testing"
	"time"

	"faceswap/internal/domain"
	"faceswap/internal/providers/genai"
)

type stubVeoClient struct {
	startErrs []error
	starts    int
	ops       []*genai.Operation
	opCalls   int
	download  []byte
	dlErr     error
}

func (s *stubVeoClient) StartVideo(context.Context, genai.VideoRequest) (string, error) {
	s.starts++
	if len(s.startErrs) > 0 {
		err := s.startErrs[0]
		s.startErrs = s.startErrs[1:]
		return "", err
	}
	return "models/veo/operations/op1", nil
}

func (s *stubVeoClient) Operation(context.Context, string) (*genai.Operation, error) {
	s.opCalls++
	if len(s.ops) == 0 {
		return &genai.Operation{Name: "models/veo/operations/op1"}, nil
	}
	next := s.ops[0]
	s.ops = s.ops[1:]
	return next, nil
}

func (s *stubVeoClient) Download(context.Context, string) ([]byte, string, error) {
	return s.download, "video/mp4", s.dlErr
}

func (s *stubVeoClient) HasCredentials() bool { return true }

func noSleep(context.Context, time.Duration) error { return nil }

func videoRequest() GenerateRequest {
	return GenerateRequest{Prompt: "slow dolly zoom", Image: &Image{Data: []byte{1}, MIME: "image/png"}}
}

func TestGenerateCompletes(t *testing.T) {
	client := &stubVeoClient{
		startErrs: []error{&domain.ProviderTransientError{Provider: "veo", StatusCode: 503}},
		ops: []*genai.Operation{
			{Name: "op1"},
			{Name: "op1", Done: true, VideoURI: "https://files.example/video.mp4"},
		},
	}
	gen := NewVeoGenerator(client, Options{Sleep: noSleep})
	res, err := gen.Generate(context.Background(), videoRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.VideoURI != "https://files.example/video.mp4" {
		t.Fatalf("uri = %q", res.VideoURI)
	}
	if client.starts != 2 || client.opCalls != 2 {
		t.Fatalf("starts = %d opCalls = %d", client.starts, client.opCalls)
	}
}

func TestGenerateFilteredIsRejection(t *testing.T) {
	client := &stubVeoClient{ops: []*genai.Operation{{
		Name:        "op1",
		Done:        true,
		RAIFiltered: 1,
		RAIReasons:  []string{"We encountered an issue with the input image: it may depict a child."},
	}}}
	gen := NewVeoGenerator(client, Options{Sleep: noSleep})
	_, err := gen.Generate(context.Background(), videoRequest())
	var rejection *domain.ContentRejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("err = %v, want rejection", err)
	}
	if rejection.Reason != domain.RejectionMinor || len(rejection.Details) != 1 {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}
}

func TestGenerateTimesOut(t *testing.T) {
	client := &stubVeoClient{}
	gen := NewVeoGenerator(client, Options{MaxPolls: 3, PollInterval: time.Second, Sleep: noSleep})
	_, err := gen.Generate(context.Background(), videoRequest())
	var timeout *domain.TimeoutError
	if !errors.As(err, &timeout) || timeout.Attempts != 3 {
		t.Fatalf("err = %v, want timeout after 3 attempts", err)
	}
}

func TestGenerateOperationError(t *testing.T) {
	client := &stubVeoClient{ops: []*genai.Operation{{Name: "op1", Done: true, Error: "internal model error"}}}
	gen := NewVeoGenerator(client, Options{Sleep: noSleep})
	_, err := gen.Generate(context.Background(), videoRequest())
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("err = %v, want provider failure", err)
	}
}

func TestValidate(t *testing.T) {
	gen := NewVeoGenerator(&stubVeoClient{}, Options{MaxPromptRunes: 10})
	tests := []struct {
		req   GenerateRequest
		field string
	}{
		{GenerateRequest{Prompt: "x"}, "sourceImage"},
		{GenerateRequest{Image: &Image{Data: []byte{1}}}, "prompt"},
		{GenerateRequest{Image: &Image{Data: []byte{1}}, Prompt: "way too long prompt"}, "prompt"},
		{GenerateRequest{Image: &Image{Data: []byte{1}}, Prompt: "ok", AspectRatio: "4:3"}, "aspectRatio"},
	}
	for _, tt := range tests {
		err := gen.Validate(tt.req)
		var validation *domain.ValidationError
		if !errors.As(err, &validation) || validation.Field != tt.field {
			t.Fatalf("req %+v: err = %v, want field %s", tt.req, err, tt.field)
		}
	}
}

func TestCheckStates(t *testing.T) {
	tests := []struct {
		op   genai.Operation
		want string
	}{
		{genai.Operation{}, StateProcessing},
		{genai.Operation{Done: true, VideoURI: "u"}, StateCompleted},
		{genai.Operation{Done: true, RAIFiltered: 2}, StateFiltered},
		{genai.Operation{Done: true, Error: "boom"}, StateFailed},
	}
	for _, tt := range tests {
		op := tt.op
		client := &stubVeoClient{ops: []*genai.Operation{&op}}
		st, err := NewVeoGenerator(client, Options{}).Check(context.Background(), "op1")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if st.State != tt.want {
			t.Fatalf("state = %s, want %s", st.State, tt.want)
		}
	}
}

func TestDownloadFailure(t *testing.T) {
	client := &stubVeoClient{dlErr: &domain.DownloadError{URL: "u", StatusCode: 403}}
	_, err := NewVeoGenerator(client, Options{}).Download(context.Background(), "u")
	var dl *domain.DownloadError
	if !errors.As(err, &dl) || dl.StatusCode != 403 {
		t.Fatalf("err = %v, want DownloadError 403", err)
	}
}
