package image

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"faceswap/internal/domain"
	"faceswap/internal/providers/faceswap"
	"faceswap/internal/providers/genai"
	"faceswap/internal/providers/qwen"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func noSleep(context.Context, time.Duration) error { return nil }

func sources(n int) []SourceImage {
	out := make([]SourceImage, n)
	for i := range out {
		out[i] = SourceImage{Data: []byte{byte(i + 1)}, MIME: "image/png"}
	}
	return out
}

func TestValidate(t *testing.T) {
	long := strings.Repeat("é", DefaultMaxPromptRunes+1)
	tests := []struct {
		name      string
		req       GenerateRequest
		reqs      Requirements
		wantField string
	}{
		{name: "ok", req: GenerateRequest{SourceImages: sources(1), Prompt: "x"}, reqs: Requirements{NeedsPrompt: true}},
		{name: "two sources", req: GenerateRequest{SourceImages: sources(2), Prompt: "x"}, reqs: Requirements{NeedsPrompt: true}},
		{name: "no source", req: GenerateRequest{Prompt: "x"}, wantField: "sourceImage"},
		{name: "three sources", req: GenerateRequest{SourceImages: sources(3)}, wantField: "sourceImages"},
		{name: "empty source", req: GenerateRequest{SourceImages: []SourceImage{{}}}, wantField: "sourceImages"},
		{name: "missing prompt", req: GenerateRequest{SourceImages: sources(1), Prompt: "  "}, reqs: Requirements{NeedsPrompt: true}, wantField: "prompt"},
		{name: "missing reference", req: GenerateRequest{SourceImages: sources(1)}, reqs: Requirements{NeedsReference: true}, wantField: "referenceImage"},
		{name: "prompt too long", req: GenerateRequest{SourceImages: sources(1), Prompt: long}, wantField: "prompt"},
		{name: "prompt at limit", req: GenerateRequest{SourceImages: sources(1), Prompt: long[:len(long)-len("é")]}},
		{name: "custom limit", req: GenerateRequest{SourceImages: sources(1), Prompt: "abcdef"}, reqs: Requirements{MaxPromptRunes: 5}, wantField: "prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req, tt.reqs)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var validation *domain.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if validation.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", validation.Field, tt.wantField)
			}
		})
	}
}

type stubQwenClient struct {
	queue    []error
	asset    *qwen.ImageAsset
	requests []qwen.EditRequest
	noCreds  bool
}

func (s *stubQwenClient) EditImage(_ context.Context, req qwen.EditRequest) (*qwen.ImageAsset, error) {
	s.requests = append(s.requests, req)
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if next != nil {
			return nil, next
		}
	}
	return s.asset, nil
}

func (s *stubQwenClient) HasCredentials() bool { return !s.noCreds }

func TestQwenEditorSendsReferenceAndSwapInstruction(t *testing.T) {
	client := &stubQwenClient{asset: &qwen.ImageAsset{Data: pngBytes, Format: "image/png"}}
	editor := NewQwenEditor(client, EditorOptions{Sleep: noSleep})
	ref := &SourceImage{Data: []byte{9}, MIME: "image/jpeg"}

	art, err := editor.Generate(context.Background(), GenerateRequest{SourceImages: sources(1), Reference: ref})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if art.MimeType != "image/png" || art.Base64 == "" {
		t.Fatalf("unexpected artifact: %+v", art)
	}
	sent := client.requests[0]
	if len(sent.Images) != 2 || sent.Images[1].MIME != "image/jpeg" {
		t.Fatalf("images = %+v, want source then reference", sent.Images)
	}
	if !strings.Contains(sent.Prompt, "face from the second image") {
		t.Fatalf("prompt = %q, want swap instruction", sent.Prompt)
	}
}

func TestQwenEditorRetriesTransientThenSucceeds(t *testing.T) {
	client := &stubQwenClient{
		queue: []error{
			&domain.ProviderTransientError{Provider: "qwen", StatusCode: 503},
			&domain.ProviderTransientError{Provider: "qwen", StatusCode: 429},
		},
		asset: &qwen.ImageAsset{Data: pngBytes, Format: "image/png"},
	}
	editor := NewQwenEditor(client, EditorOptions{Sleep: noSleep})
	if _, err := editor.Generate(context.Background(), GenerateRequest{SourceImages: sources(1), Prompt: "make it noir"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(client.requests) != 3 {
		t.Fatalf("calls = %d, want 3", len(client.requests))
	}
	if client.requests[0].Prompt != "make it noir" {
		t.Fatalf("prompt = %q, want caller prompt unchanged", client.requests[0].Prompt)
	}
}

func TestQwenEditorValidationSkipsNetwork(t *testing.T) {
	client := &stubQwenClient{}
	editor := NewQwenEditor(client, EditorOptions{Sleep: noSleep})
	_, err := editor.Generate(context.Background(), GenerateRequest{SourceImages: sources(1)})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(client.requests) != 0 {
		t.Fatalf("calls = %d, want 0", len(client.requests))
	}
}

func TestQwenEditorMissingCredentialsIsProviderFailure(t *testing.T) {
	editor := NewQwenEditor(&stubQwenClient{noCreds: true}, EditorOptions{})
	_, err := editor.Generate(context.Background(), GenerateRequest{SourceImages: sources(1), Prompt: "x"})
	if !errors.Is(err, domain.ErrProviderFailure) || !errors.Is(err, qwen.ErrMissingAPIKey) {
		t.Fatalf("err = %v", err)
	}
}

type stubGeminiClient struct {
	err      error
	requests []genai.EditRequest
}

func (s *stubGeminiClient) EditImage(_ context.Context, req genai.EditRequest) (*genai.ImageAsset, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &genai.ImageAsset{Data: pngBytes, Format: "image/png"}, nil
}

func (s *stubGeminiClient) HasCredentials() bool { return true }

func TestGeminiEditorClothingTask(t *testing.T) {
	client := &stubGeminiClient{}
	editor := NewGeminiEditor(client, EditorOptions{Sleep: noSleep})
	_, err := editor.Generate(context.Background(), GenerateRequest{
		SourceImages: sources(1),
		Prompt:       "a navy blazer",
		Task:         TaskClothing,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := client.requests[0].Prompt; !strings.Contains(got, "clothing") || !strings.Contains(got, "a navy blazer") {
		t.Fatalf("prompt = %q", got)
	}
}

func TestGeminiEditorDoesNotRetryRejection(t *testing.T) {
	client := &stubGeminiClient{err: domain.NewContentRejection("gemini", "IMAGE_SAFETY")}
	editor := NewGeminiEditor(client, EditorOptions{Sleep: noSleep})
	_, err := editor.Generate(context.Background(), GenerateRequest{SourceImages: sources(1), Prompt: "x"})
	var rejection *domain.ContentRejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("err = %v, want rejection", err)
	}
	if len(client.requests) != 1 {
		t.Fatalf("calls = %d, want 1", len(client.requests))
	}
}

type stubSwapClient struct {
	created  *faceswap.Prediction
	polls    []*faceswap.Prediction
	getCalls int
	getErr   error
	download []byte
}

func (s *stubSwapClient) Create(context.Context, faceswap.SwapRequest) (*faceswap.Prediction, error) {
	return s.created, nil
}

func (s *stubSwapClient) Get(context.Context, string) (*faceswap.Prediction, error) {
	s.getCalls++
	if s.getErr != nil && s.getCalls == 1 {
		return nil, s.getErr
	}
	if len(s.polls) == 0 {
		return &faceswap.Prediction{ID: "p1", Status: faceswap.StatusProcessing}, nil
	}
	next := s.polls[0]
	s.polls = s.polls[1:]
	return next, nil
}

func (s *stubSwapClient) Download(context.Context, string) ([]byte, string, error) {
	return s.download, "image/png", nil
}

func (s *stubSwapClient) HasCredentials() bool { return true }

func swapRequest() GenerateRequest {
	return GenerateRequest{SourceImages: sources(1), Reference: &SourceImage{Data: []byte{7}, MIME: "image/png"}}
}

func TestFaceSwapperPollsUntilSucceeded(t *testing.T) {
	client := &stubSwapClient{
		created: &faceswap.Prediction{ID: "p1", Status: faceswap.StatusStarting},
		getErr:  &domain.ProviderTransientError{Provider: "faceswap", StatusCode: 502},
		polls: []*faceswap.Prediction{
			{ID: "p1", Status: faceswap.StatusProcessing},
			{ID: "p1", Status: faceswap.StatusSucceeded, Output: "https://out.example/p1.png"},
		},
		download: pngBytes,
	}
	swapper := NewFaceSwapper(client, FaceSwapOptions{PollInterval: time.Millisecond, MaxPolls: 5, Sleep: noSleep})
	art, err := swapper.Generate(context.Background(), swapRequest())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if art.MimeType != "image/png" {
		t.Fatalf("mime = %q", art.MimeType)
	}
	if client.getCalls != 3 {
		t.Fatalf("status checks = %d, want 3", client.getCalls)
	}
}

func TestFaceSwapperFailureClassification(t *testing.T) {
	tests := []struct {
		message       string
		wantRejection bool
	}{
		{message: "NSFW content detected in input", wantRejection: true},
		{message: "Blocked: face appears to belong to a minor", wantRejection: true},
		{message: "no face detected in target image", wantRejection: false},
		{message: "minor internal error", wantRejection: false},
	}
	for _, tt := range tests {
		client := &stubSwapClient{created: &faceswap.Prediction{ID: "p1", Status: faceswap.StatusFailed, Error: tt.message}}
		swapper := NewFaceSwapper(client, FaceSwapOptions{Sleep: noSleep})
		_, err := swapper.Generate(context.Background(), swapRequest())
		var rejection *domain.ContentRejectionError
		if got := errors.As(err, &rejection); got != tt.wantRejection {
			t.Fatalf("%q: rejection = %v, want %v (err %v)", tt.message, got, tt.wantRejection, err)
		}
		if !tt.wantRejection && !errors.Is(err, domain.ErrProviderFailure) {
			t.Fatalf("%q: err = %v, want provider failure", tt.message, err)
		}
	}
}

func TestFaceSwapperTimesOut(t *testing.T) {
	client := &stubSwapClient{created: &faceswap.Prediction{ID: "p1", Status: faceswap.StatusStarting}}
	swapper := NewFaceSwapper(client, FaceSwapOptions{PollInterval: time.Second, MaxPolls: 4, Sleep: noSleep})
	_, err := swapper.Generate(context.Background(), swapRequest())
	var timeout *domain.TimeoutError
	if !errors.As(err, &timeout) || timeout.Attempts != 4 {
		t.Fatalf("err = %v, want timeout after 4 attempts", err)
	}
	if client.getCalls != 4 {
		t.Fatalf("status checks = %d, want 4", client.getCalls)
	}
}

func TestFaceSwapperRequiresReference(t *testing.T) {
	swapper := NewFaceSwapper(&stubSwapClient{}, FaceSwapOptions{})
	_, err := swapper.Generate(context.Background(), GenerateRequest{SourceImages: sources(1), Prompt: "x"})
	var validation *domain.ValidationError
	if !errors.As(err, &validation) || validation.Field != "referenceImage" {
		t.Fatalf("err = %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NewQwenEditor(&stubQwenClient{}, EditorOptions{}), NewGeminiEditor(&stubGeminiClient{}, EditorOptions{}))
	if g, err := reg.Get(" Gemini "); err != nil || g.Name() != ProviderGemini {
		t.Fatalf("get gemini = %v, %v", g, err)
	}
	if _, err := reg.Get("dalle"); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
}
