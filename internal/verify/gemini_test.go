package verify_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajided/sparkEye/internal/types"
	"github.com/sajided/sparkEye/internal/verify"
)

func testRequest() verify.Request {
	return verify.Request{
		StepInstruction: "Connect LED anode to pin 13",
		ExpectedVisual:  "LED with resistor on pin 13",
		ImageBytes:      []byte{0xff, 0xd8, 0xff}, // jpeg-ish, server never decodes it
	}
}

// candidateResponse wraps model text in the generateContent response shape.
func candidateResponse(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(body)
}

func newTestClient(srv *httptest.Server) *verify.GeminiClient {
	c := verify.NewGeminiClient("test-key", "")
	c.BaseURL = srv.URL
	return c
}

func TestVerifyParsesFencedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		text := "```json\n{\"status\": \"correct\", \"confidence\": 0.92, \"feedback\": \"Wiring matches.\"}\n```"
		fmt.Fprint(w, candidateResponse(text))
	}))
	defer srv.Close()

	out, err := newTestClient(srv).Verify(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.StatusCorrect, out.Status)
	assert.InDelta(t, 0.92, out.Confidence, 1e-9)
	assert.Equal(t, "Wiring matches.", out.Feedback)
}

func TestVerifySendsInlineImage(t *testing.T) {
	var captured struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mime_type"`
					Data     string `json:"data"`
				} `json:"inline_data"`
			} `json:"parts"`
		} `json:"contents"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, candidateResponse(`{"status":"correct","confidence":1,"feedback":"ok"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Verify(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 2)
	assert.Contains(t, captured.Contents[0].Parts[0].Text, "Connect LED anode to pin 13")
	require.NotNil(t, captured.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", captured.Contents[0].Parts[1].InlineData.MimeType)
	assert.NotEmpty(t, captured.Contents[0].Parts[1].InlineData.Data)
}

func TestVerifyQuotaExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Verify(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, verify.ErrQuotaExhausted))
}

func TestVerifyServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Verify(context.Background(), testRequest())
	var te *verify.TransportError
	require.True(t, errors.As(err, &te))
}

func TestVerifyConnectionRefusedIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv).Verify(context.Background(), testRequest())
	var te *verify.TransportError
	require.True(t, errors.As(err, &te))
}

func TestVerifyEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Verify(context.Background(), testRequest())
	var nr *verify.NoResponseError
	require.True(t, errors.As(err, &nr))
}

func TestVerifyGarbageBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>definitely not json</html>")
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Verify(context.Background(), testRequest())
	var me *verify.MalformedResponseError
	require.True(t, errors.As(err, &me))
}

func TestExtractOutcome(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		want    types.Status
		wantErr bool
	}{
		{
			name: "bare json",
			text: `{"status":"correct","confidence":0.9,"feedback":"ok"}`,
			want: types.StatusCorrect,
		},
		{
			name: "fenced json",
			text: "```json\n{\"status\":\"partial\",\"confidence\":0.5,\"feedback\":\"half\"}\n```",
			want: types.StatusPartial,
		},
		{
			name: "json buried in prose",
			text: `Sure! Here is my assessment: {"status":"incorrect","confidence":0.8,"feedback":"no"} Hope that helps.`,
			want: types.StatusIncorrect,
		},
		{
			name:    "no json at all",
			text:    "The wiring looks correct to me.",
			wantErr: true,
		},
		{
			name:    "unknown status",
			text:    `{"status":"maybe","confidence":0.5,"feedback":"?"}`,
			wantErr: true,
		},
		{
			name:    "broken json",
			text:    `{"status":"correct",`,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := verify.ExtractOutcome(tc.text)
			if tc.wantErr {
				var me *verify.MalformedResponseError
				require.True(t, errors.As(err, &me))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Status)
		})
	}
}

func TestSimulatedVerifierSucceeds(t *testing.T) {
	s := &verify.Simulated{Delay: 0}
	out, err := s.Verify(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.StatusCorrect, out.Status)
}
