package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/genai"

	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
	"github.com/yungbote/adstudio-backend/internal/platform/llm"
)

func TestTextFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"a":1}`}}},
		}},
	}
	got, err := textFromResponse(resp)
	if err != nil {
		t.Fatalf("textFromResponse: %v", err)
	}
	if got != `{"a":1}` {
		t.Fatalf("text: want=%q got=%q", `{"a":1}`, got)
	}
}

func TestTextFromResponseSafetyBlockIsRetryable(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	}
	_, err := textFromResponse(resp)
	if !errors.Is(err, llm.ErrBlocked) {
		t.Fatalf("want ErrBlocked, got=%v", err)
	}
	if !llm.IsRetryable(err) {
		t.Fatalf("safety block should be retryable")
	}
}

func TestImageFromResponsePicksInlineData(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here you go"},
				{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}},
			}},
		}},
	}
	img, err := imageFromResponse(resp)
	if err != nil {
		t.Fatalf("imageFromResponse: %v", err)
	}
	if len(img.Bytes) != 3 || img.MimeType != "image/jpeg" {
		t.Fatalf("image: got bytes=%d mime=%q", len(img.Bytes), img.MimeType)
	}
}

func TestImageFromResponseWithoutImage(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "sorry"}}},
		}},
	}
	if _, err := imageFromResponse(resp); !errors.Is(err, ErrNoImage) {
		t.Fatalf("want ErrNoImage, got=%v", err)
	}
}

func TestClassifyAPIError(t *testing.T) {
	err := classify(fmt.Errorf("call: %w", genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}))
	var se *httpx.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want *httpx.StatusError, got=%T", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status: want=429 got=%d", se.StatusCode)
	}
	if !httpx.IsRetryableError(err) {
		t.Fatalf("429 should be retryable")
	}

	err = classify(genai.APIError{Code: http.StatusBadRequest, Message: "bad"})
	if httpx.IsRetryableError(err) {
		t.Fatalf("400 should not be retryable")
	}
}
