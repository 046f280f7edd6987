package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/seenimoa/pianalytics/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

// newTestClient starts srv with handler and returns a client pointed at it.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{BaseURL: srv.URL + "/api"}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := io.WriteString(w, body)
	assert.NoError(t, err)
}

// ── Construction ──

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"relative", "/api"},
		{"no scheme", "pi.crunchdao.com/api"},
		{"ftp", "ftp://example.com/api"},
		{"bad escape", "http://%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.url})
			if !errors.Is(err, ErrInvalidBaseURL) {
				t.Fatalf("New(%q): got %v, want ErrInvalidBaseURL", tt.url, err)
			}
		})
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c, err := New(Config{BaseURL: "https://pi.crunchdao.com/api/"})
	require.NoError(t, err)
	assert.Equal(t, "https://pi.crunchdao.com/api", c.BaseURL())
}

// ── Prompt submission & scores ──

func TestSubmitPromptThenScores(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/prompts":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var req models.PromptRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Analyze market sentiment", req.Prompt)
			writeJSON(t, w, `{"prompt_id": "abc123"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/prompts/abc123/scores":
			writeJSON(t, w, `{
				"prompt_id": "abc123",
				"scores": [
					{"time": "2024-12-16T00:00:00Z", "value": 0.45},
					{"time": "2024-12-17T00:00:00Z", "value": 0.47}
				]
			}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	id, err := c.SubmitPrompt(ctx, "Analyze market sentiment")
	require.NoError(t, err)
	assert.Equal(t, models.PromptID("abc123"), id)

	series, err := c.GetScores(ctx, id)
	require.NoError(t, err)

	want := &models.ScoreSeries{
		PromptID: "abc123",
		Scores: []models.ScorePoint{
			{Time: "2024-12-16T00:00:00Z", Value: 0.45},
			{Time: "2024-12-17T00:00:00Z", Value: 0.47},
		},
	}
	if diff := cmp.Diff(want, series); diff != "" {
		t.Errorf("GetScores mismatch (-want +got):\n%s", diff)
	}
}

func TestGetScoresPreservesOrder(t *testing.T) {
	// Deliberately not chronological: the client must not re-sort.
	body := `{"prompt_id":"p1","scores":[
		{"time":"2024-12-18T00:00:00Z","value":3},
		{"time":"2024-12-16T00:00:00Z","value":-1.5},
		{"time":"2024-12-17T00:00:00Z","value":0}
	]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, body)
	})

	series, err := c.GetScores(context.Background(), "p1")
	require.NoError(t, err)

	want := []models.ScorePoint{
		{Time: "2024-12-18T00:00:00Z", Value: 3},
		{Time: "2024-12-16T00:00:00Z", Value: -1.5},
		{Time: "2024-12-17T00:00:00Z", Value: 0},
	}
	if diff := cmp.Diff(want, series.Scores); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitPromptReturnsIDUnmodified(t *testing.T) {
	ids := []string{"abc123", "  padded  ", "ID/with/slashes", "ünïcode-✓"}
	for _, want := range ids {
		t.Run(want, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewEncoder(w).Encode(models.PromptResponse{PromptID: models.PromptID(want)}))
			})
			got, err := c.SubmitPrompt(context.Background(), "any prompt")
			require.NoError(t, err)
			if string(got) != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestSubmitPromptMissingID(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"status": "queued"}`)
	}

	t.Run("lenient", func(t *testing.T) {
		c := newTestClient(t, handler)
		id, err := c.SubmitPrompt(context.Background(), "hello")
		require.NoError(t, err)
		assert.True(t, id.IsZero(), "expected absent id, got %q", id)
	})

	t.Run("strict", func(t *testing.T) {
		c := newTestClient(t, handler, func(cfg *Config) { cfg.StrictPromptID = true })
		_, err := c.SubmitPrompt(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrMissingPromptID)
	})
}

func TestEmptyPromptSendsNothing(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	for _, prompt := range []string{"", "  \t\n"} {
		_, err := c.SubmitPrompt(context.Background(), prompt)
		assert.ErrorIs(t, err, ErrEmptyPrompt)
		_, err = c.BroadcastPrompt(context.Background(), prompt)
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	}
	assert.Zero(t, hits.Load())
}

func TestAbsentIDLookupSendsNothing(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := c.GetScores(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingPromptID)
	_, err = c.GetAnalysisResults(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingPromptID)
	assert.Zero(t, hits.Load())
}

// ── Broadcast & analysis results ──

func TestBroadcastThenAnalysisResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/prompts/broadcast":
			var req models.PromptRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Broadcast analysis for fintech sector", req.Prompt)
			writeJSON(t, w, `{"prompt_id": "def456"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/results/def456":
			writeJSON(t, w, `{
				"prompt_id": "def456",
				"records": [
					{"time": "2024-12-16T00:00:00Z", "prompt_id": "def456", "value": 0.52, "announce_id": "ann123"},
					{"time": "2024-12-17T00:00:00Z", "prompt_id": "def456", "value": 0.50, "announce_id": "ann124"}
				],
				"recommended_tickers": ["AAPL", "GOOGL", "AMZN"]
			}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	id, err := c.BroadcastPrompt(ctx, "Broadcast analysis for fintech sector")
	require.NoError(t, err)
	assert.Equal(t, models.PromptID("def456"), id)

	res, err := c.GetAnalysisResults(ctx, id)
	require.NoError(t, err)

	want := &models.AnalysisResult{
		PromptID: "def456",
		Records: []models.AnalysisRecord{
			{Time: "2024-12-16T00:00:00Z", PromptID: "def456", Value: 0.52, AnnounceID: "ann123"},
			{Time: "2024-12-17T00:00:00Z", PromptID: "def456", Value: 0.50, AnnounceID: "ann124"},
		},
		RecommendedTickers: []string{"AAPL", "GOOGL", "AMZN"},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("GetAnalysisResults mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysisResultsKeepDuplicates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"prompt_id":"x","records":[],"recommended_tickers":["MSFT","AAPL","MSFT"]}`)
	})
	res, err := c.GetAnalysisResults(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "AAPL", "MSFT"}, res.RecommendedTickers)
	assert.Empty(t, res.Records)
}

// ── Failures ──

func TestStatusErrors(t *testing.T) {
	ops := []struct {
		name string
		call func(*Client) error
	}{
		{"submit", func(c *Client) error { _, err := c.SubmitPrompt(context.Background(), "p"); return err }},
		{"scores", func(c *Client) error { _, err := c.GetScores(context.Background(), "id1"); return err }},
		{"broadcast", func(c *Client) error { _, err := c.BroadcastPrompt(context.Background(), "p"); return err }},
		{"results", func(c *Client) error { _, err := c.GetAnalysisResults(context.Background(), "id1"); return err }},
	}
	codes := []int{http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable}

	for _, op := range ops {
		for _, code := range codes {
			t.Run(op.name+"/"+http.StatusText(code), func(t *testing.T) {
				c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(code)
					// A body that would decode fine must still be ignored.
					_, _ = io.WriteString(w, `{"prompt_id":"should-not-be-used"}`)
				})

				err := op.call(c)
				require.Error(t, err)

				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, code, se.StatusCode)
				assert.True(t, IsStatus(err, code))
				assert.Contains(t, se.Body, "should-not-be-used")
			})
		}
	}
}

func TestStatusErrorBodyTruncated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 4*maxErrorBody))
	})
	_, err := c.SubmitPrompt(context.Background(), "p")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Body, maxErrorBody)
}

func TestStatusErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	// One leading ASCII byte puts the cut in the middle of a two-byte rune.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "x"+strings.Repeat("é", maxErrorBody))
	})
	_, err := c.GetScores(context.Background(), "id1")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, utf8.ValidString(se.Body), "truncated body is not valid UTF-8")
	assert.LessOrEqual(t, len(se.Body), maxErrorBody)
	assert.Equal(t, maxErrorBody-1, len(se.Body))
}

func TestStatusErrorReasonPhrase(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		reason string
	}{
		{"known code", http.StatusTeapot, "I'm a teapot"},
		{"not found", http.StatusNotFound, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			})
			_, err := c.GetScores(context.Background(), "id1")

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.reason, se.Status)
			assert.NotContains(t, se.Status, strconv.Itoa(tt.code))
		})
	}

	t.Run("nonstandard code", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(599)
		})
		_, err := c.GetScores(context.Background(), "id1")

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 599, se.StatusCode)
		assert.NotEmpty(t, se.Status)
		assert.NotContains(t, err.Error(), "599 :")
		assert.True(t, IsStatus(err, 599))
	})
}

func TestMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `<html>not json</html>`)
	})

	_, err := c.SubmitPrompt(context.Background(), "p")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "submit prompt", de.Op)

	_, err = c.GetScores(context.Background(), "id")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "get scores", de.Op)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base})
	require.NoError(t, err)

	_, err = c.SubmitPrompt(context.Background(), "p")
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se), "transport failure must not be a StatusError")
	assert.Contains(t, err.Error(), "submit prompt")

	_, err = c.GetScores(context.Background(), "id1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), base+"/prompts/id1/scores")
	assert.NotContains(t, err.Error(), "{prompt_id}")
}

func TestTransportTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		writeJSON(t, w, `{"prompt_id":"slow"}`)
	}, func(cfg *Config) {
		cfg.Timeout = 50 * time.Millisecond
	})

	start := time.Now()
	_, err := c.SubmitPrompt(context.Background(), "p")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 300*time.Millisecond)

	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout(), "expected a timeout error, got %v", err)
	var se *StatusError
	assert.False(t, errors.As(err, &se), "timeout must not be a StatusError")
	assert.Contains(t, err.Error(), "submit prompt")
}

func TestLookupEscapesPromptID(t *testing.T) {
	ids := []struct {
		id      models.PromptID
		escaped string
	}{
		{"a/b", "a%2Fb"},
		{"q?x=1", "q%3Fx=1"},
		{"h#f", "h%23f"},
		{"sp ace", "sp%20ace"},
	}
	for _, tt := range ids {
		t.Run(tt.escaped, func(t *testing.T) {
			var (
				mu  sync.Mutex
				got []string
			)
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				got = append(got, r.URL.EscapedPath())
				mu.Unlock()
				assert.Empty(t, r.URL.RawQuery)
				writeJSON(t, w, `[]`)
			})

			_, err := c.GetScores(context.Background(), tt.id)
			require.NoError(t, err)
			_, err = c.GetAnalysisResults(context.Background(), tt.id)
			require.NoError(t, err)

			want := []string{
				"/api/prompts/" + tt.escaped + "/scores",
				"/api/results/" + tt.escaped,
			}
			mu.Lock()
			defer mu.Unlock()
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("request paths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			writeJSON(t, w, `{}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}, func(cfg *Config) {
		cfg.Logger = zap.New(core)
	})

	_, err := c.SubmitPrompt(context.Background(), "p")
	require.NoError(t, err)
	_, err = c.GetScores(context.Background(), "id1")
	require.Error(t, err)

	reqs := logs.FilterMessage("analytics request").All()
	require.Len(t, reqs, 2)
	assert.Equal(t, zapcore.DebugLevel, reqs[0].Level)
	fields := reqs[1].ContextMap()
	assert.Equal(t, "get scores", fields["op"])
	assert.Equal(t, http.MethodGet, fields["method"])
	assert.EqualValues(t, http.StatusInternalServerError, fields["status"])
	assert.Contains(t, fields["url"], "/api/prompts/id1/scores")

	missing := logs.FilterMessage("response carried no prompt_id").All()
	require.Len(t, missing, 1)
	assert.Equal(t, zapcore.WarnLevel, missing[0].Level)

	failed := logs.FilterMessage("analytics request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.EqualValues(t, http.StatusInternalServerError, failed[0].ContextMap()["status"])
}

func TestContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"prompt_id":"late"}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.BroadcastPrompt(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

// ── Headers ──

func TestRequestHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pianalytics-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(t, w, `{"prompt_id":"h1"}`)
	}, func(cfg *Config) { cfg.UserAgent = "pianalytics-test/1.0" })

	_, err := c.SubmitPrompt(context.Background(), "p")
	require.NoError(t, err)
}
