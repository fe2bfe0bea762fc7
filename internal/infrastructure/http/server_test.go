package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/0xcro3dile/chemed-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
	"github.com/0xcro3dile/chemed-go/internal/domain/prompts"
	"github.com/0xcro3dile/chemed-go/internal/domain/stoich"
	"github.com/0xcro3dile/chemed-go/internal/domain/topic"
	"github.com/0xcro3dile/chemed-go/internal/domain/usecases"
)

type fakeLLM struct {
	mu     sync.Mutex
	calls  int
	answer string
	tokens []string
	err    error
}

func (f *fakeLLM) Complete(ctx context.Context, req entities.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.answer, f.err
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req entities.CompletionRequest) (<-chan ports.StreamToken, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	ch := make(chan ports.StreamToken, len(f.tokens)+1)
	for _, tok := range f.tokens {
		ch <- ports.StreamToken{Content: tok}
	}
	if f.err != nil {
		ch <- ports.StreamToken{Error: f.err}
	} else {
		ch <- ports.StreamToken{Done: true}
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// axisEmbedder puts texts mentioning salt on one axis and everything else on
// the other.
type axisEmbedder struct{}

func (axisEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "salt") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (e axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

type fakeStructures struct{}

func (fakeStructures) Lookup(ctx context.Context, name string) (*entities.Structure, error) {
	if name == "ethanol" {
		return &entities.Structure{Name: name, CID: 702, SDF: "702\nM  END\n"}, nil
	}
	return nil, ports.ErrNotFound
}

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, smiles string) (*entities.Rendering, error) {
	return &entities.Rendering{Name: smiles, ImageURL: "data:image/png;base64,AAAA"}, nil
}

func (fakeRenderer) IsServiceHealthy(ctx context.Context) bool { return true }

func newTestServer(t *testing.T, llm *fakeLLM, logger *zap.Logger) *Server {
	t.Helper()
	classifier, err := topic.NewClassifier(topic.Config{
		Keywords:       topic.FallbackKeywords,
		FormulaPattern: topic.DefaultFormulaPattern,
	})
	require.NoError(t, err)
	holder := topic.NewHolder(classifier)

	store := vectordb.NewInMemoryStore()
	require.NoError(t, store.Store(context.Background(), []entities.Passage{
		{ID: "p1", DocumentID: "d1", Text: "NaCl is table salt.", Embedding: []float32{1, 0}},
		{ID: "p2", DocumentID: "d1", Text: "Water is H2O.", Embedding: []float32{0, 1}},
	}))

	search := usecases.NewQueryUseCase(axisEmbedder{}, store, 1)
	balancer := stoich.NewBalancer()
	return NewServer(Dependencies{
		Chat:      usecases.NewChatUseCase(holder, balancer, llm, nil, usecases.DefaultChatOptions(), nil),
		Balancer:  balancer,
		Search:    search,
		Grade:     usecases.NewGradeUseCase(axisEmbedder{}),
		Teacher:   usecases.NewTeacherUseCase(llm, usecases.DefaultChatOptions()),
		Visualize: usecases.NewVisualizeUseCase(fakeStructures{}, fakeRenderer{}),
		Store:     store,
		Topic:     holder,
	}, Options{MaxBodyBytes: 1 << 10}, logger)
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)
	rec, out := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])
	assert.EqualValues(t, 2, out["passages"])
	assert.EqualValues(t, len(topic.FallbackKeywords), out["keywords"])
}

func TestChat(t *testing.T) {
	t.Run("missing prompt", func(t *testing.T) {
		llm := &fakeLLM{}
		rec, out := do(t, newTestServer(t, llm, nil), http.MethodPost, "/api/chat", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, out["ok"])
		assert.Equal(t, "Missing 'prompt' field.", out["error"])
		assert.Zero(t, llm.count())
	})

	t.Run("invalid json", func(t *testing.T) {
		rec, out := do(t, newTestServer(t, &fakeLLM{}, nil), http.MethodPost, "/api/chat", `{"prompt":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, out["ok"])
	})

	t.Run("body too large", func(t *testing.T) {
		body := `{"prompt":"` + strings.Repeat("a", 2<<10) + `"}`
		rec, _ := do(t, newTestServer(t, &fakeLLM{}, nil), http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("off topic", func(t *testing.T) {
		llm := &fakeLLM{answer: "should not be used"}
		rec, out := do(t, newTestServer(t, llm, nil), http.MethodPost, "/api/chat", `{"prompt":"who won the football match?"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, prompts.OffTopic, out["message"])
		assert.Equal(t, false, out["on_topic"])
		assert.Zero(t, llm.count())
	})

	t.Run("verified balance", func(t *testing.T) {
		llm := &fakeLLM{answer: "Hydrogen burns in oxygen."}
		rec, out := do(t, newTestServer(t, llm, nil), http.MethodPost, "/api/chat",
			`{"prompt":"balance H2 + O2 -> H2O","history":[{"role":"user","content":"hi"},{"role":"system","content":"ignored"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, out["ok"])
		assert.Equal(t, true, out["verified"])
		assert.Equal(t, "2H2 + O2 -> 2H2O", out["equation"])
		assert.True(t, strings.HasPrefix(out["message"].(string), "Balanced equation: 2H2 + O2 -> 2H2O"))
	})

	t.Run("model failure", func(t *testing.T) {
		llm := &fakeLLM{err: errors.New("upstream 500")}
		rec, out := do(t, newTestServer(t, llm, nil), http.MethodPost, "/api/chat", `{"prompt":"what is an acid?"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, false, out["ok"])
	})
}

func TestChatStream(t *testing.T) {
	llm := &fakeLLM{tokens: []string{"An acid ", "donates protons."}}
	s := newTestServer(t, llm, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?q=what+is+an+acid", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []map[string]any
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, "An acid ", events[0]["content"])
	assert.Equal(t, "donates protons.", events[1]["content"])
	assert.Equal(t, true, events[2]["done"])
}

func TestChatStream_Errors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		rec, out := do(t, newTestServer(t, &fakeLLM{}, nil), http.MethodGet, "/api/chat/stream", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, out["ok"])
	})

	t.Run("upstream error ends the stream", func(t *testing.T) {
		llm := &fakeLLM{tokens: []string{"partial"}, err: errors.New("reset")}
		req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?q=what+is+an+ion", nil)
		rec := httptest.NewRecorder()
		newTestServer(t, llm, nil).Handler().ServeHTTP(rec, req)

		body := rec.Body.String()
		assert.Contains(t, body, `"content":"partial"`)
		assert.Contains(t, body, `"error":"reset"`)
	})
}

func TestBalance(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)

	rec, out := do(t, s, http.MethodPost, "/api/balance", `{"reaction":"Fe + O2 -> Fe2O3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["found"])
	assert.Equal(t, "4Fe + 3O2 -> 2Fe2O3", out["equation"])
	left := out["left"].([]any)
	assert.EqualValues(t, 4, left[0].(map[string]any)["coef"])

	rec, out = do(t, s, http.MethodPost, "/api/balance", `{"reaction":"H2 -> O2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["found"])

	rec, out = do(t, s, http.MethodPost, "/api/balance", `{"reaction":"H2 + O2 = H2O"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "malformed reaction")

	rec, _ = do(t, s, http.MethodPost, "/api/balance", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVisualize(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)

	rec, out := do(t, s, http.MethodPost, "/api/visualize", `{"molecule":"ethanol"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 702, out["cid"])
	assert.Contains(t, out["sdf"], "M  END")

	rec, out = do(t, s, http.MethodPost, "/api/visualize", `{"molecule":"unobtainium"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, out["ok"])

	rec, _ = do(t, s, http.MethodPost, "/api/visualize", `{"molecule":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRender(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)

	rec, out := do(t, s, http.MethodGet, "/api/render?name=CCO", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CCO", out["name"])
	assert.Equal(t, "data:image/png;base64,AAAA", out["url"])

	rec, _ = do(t, s, http.MethodGet, "/api/render", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGrade(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)

	rec, out := do(t, s, http.MethodPost, "/api/grade",
		`{"question":"What is NaCl?","expected":"table salt","student":"it is salt"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.000", out["similarity"])
	assert.EqualValues(t, 5, out["marks"])
	assert.Equal(t, usecases.FeedbackFor(5), out["feedback"])

	rec, out = do(t, s, http.MethodPost, "/api/grade", `{"expected":"table salt","answer":"water"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.000", out["similarity"])

	rec, _ = do(t, s, http.MethodPost, "/api/grade", `{"expected":"table salt"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeacherQuestions(t *testing.T) {
	llm := &fakeLLM{answer: "1. Define a mole."}
	s := newTestServer(t, llm, nil)

	rec, out := do(t, s, http.MethodPost, "/api/teacher/questions", `{"grade":"10","topic":"moles"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1. Define a mole.", out["questions"])

	rec, _ = do(t, s, http.MethodPost, "/api/teacher/questions", `{"grade":"10"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)

	rec, out := do(t, s, http.MethodGet, "/api/search?q=salt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "NaCl is table salt.", results[0].(map[string]any)["text"])

	rec, _ = do(t, s, http.MethodGet, "/api/reference?q=water", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var refs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refs))
	require.Len(t, refs, 1)
	assert.Equal(t, "Water is H2O.", refs[0]["text"])

	rec, _ = do(t, s, http.MethodGet, "/api/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionalRoutesUnavailable(t *testing.T) {
	s := NewServer(Dependencies{}, Options{}, nil)
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/grade", `{"expected":"a","student":"b"}`},
		{http.MethodGet, "/api/search?q=acid", ""},
		{http.MethodPost, "/api/visualize", `{"molecule":"ethanol"}`},
		{http.MethodGet, "/api/render?name=CCO", ""},
		{http.MethodPost, "/api/teacher/questions", `{"grade":"9","topic":"ions"}`},
	} {
		rec, out := do(t, s, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
		assert.Equal(t, false, out["ok"], tc.path)
	}
}

func TestRouting(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)

	rec, out := do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, out["ok"])

	rec, _ = do(t, s, http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := newTestServer(t, &fakeLLM{}, zap.New(core))

	do(t, s, http.MethodGet, "/healthz", "")

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/healthz", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestServe_Shutdown(t *testing.T) {
	s := newTestServer(t, &fakeLLM{}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
