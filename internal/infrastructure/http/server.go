// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
	"github.com/0xcro3dile/chemed-go/internal/domain/stoich"
	"github.com/0xcro3dile/chemed-go/internal/domain/topic"
	"github.com/0xcro3dile/chemed-go/internal/domain/usecases"
)

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes = 2 << 20

// Dependencies are the use cases the server exposes. Search, Grade,
// Visualize, Teacher, Store and Topic may be nil; their routes then answer
// 503.
type Dependencies struct {
	Chat           *usecases.ChatUseCase
	Balancer       *stoich.Balancer
	BalanceTimeout time.Duration
	Search         *usecases.QueryUseCase
	Grade          *usecases.GradeUseCase
	Teacher        *usecases.TeacherUseCase
	Visualize      *usecases.VisualizeUseCase
	Store          ports.KnowledgeStore
	Topic          *topic.Holder
}

// Options configure the listener.
type Options struct {
	Addr            string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// Server is the chemed HTTP API.
type Server struct {
	deps    Dependencies
	opts    Options
	logger  *zap.Logger
	handler http.Handler
}

// NewServer creates a new HTTP server.
func NewServer(deps Dependencies, opts Options, logger *zap.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if deps.BalanceTimeout <= 0 {
		deps.BalanceTimeout = 2 * time.Second
	}
	if deps.Balancer == nil {
		deps.Balancer = stoich.NewBalancer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, opts: opts, logger: logger}
	s.handler = s.routes()
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/chat/stream", s.handleChatStream)
		r.Post("/balance", s.handleBalance)
		r.Post("/visualize", s.handleVisualize)
		r.Get("/render", s.handleRender)
		r.Post("/grade", s.handleGrade)
		r.Post("/teacher/questions", s.handleTeacherQuestions)
		r.Get("/search", s.handleSearch)
		r.Get("/reference", s.handleReference)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: chat streams stay open for the whole completion.
	}

	s.logger.Info("chemed server starting", zap.String("addr", ln.Addr().String()))

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("chemed server stopped")
	return nil
}

type chatBody struct {
	Prompt  string        `json:"prompt"`
	History []historyTurn `json:"history,omitempty"`
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sourceBody struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"ok": true}
	if s.deps.Topic != nil {
		resp["keywords"] = s.deps.Topic.Load().Size()
	}
	if s.deps.Store != nil {
		if n, err := s.deps.Store.Count(r.Context()); err == nil {
			resp["passages"] = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if !s.decode(w, r, &body) {
		return
	}

	resp, err := s.deps.Chat.Chat(r.Context(), &entities.ChatRequest{
		Prompt:  body.Prompt,
		History: history(body.History),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := map[string]any{
		"ok":       true,
		"message":  resp.Answer,
		"on_topic": resp.OnTopic,
		"verified": resp.Verified,
	}
	if eq := resp.Equation(); eq != "" {
		out["equation"] = eq
	}
	if len(resp.Sources) > 0 {
		out["sources"] = sources(resp.Sources)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleChatStream sends the answer as server-sent events, one JSON object
// per token: {"content": "...", "done": false}, ending with done=true.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported.")
		return
	}

	tokens, err := s.deps.Chat.ChatStream(r.Context(), &entities.ChatRequest{Prompt: r.URL.Query().Get("q")})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for tok := range tokens {
		if tok.Error != nil {
			s.logger.Warn("chat stream failed", zap.Error(tok.Error), zap.String("request_id", middleware.GetReqID(r.Context())))
			sendSSE(w, flusher, map[string]any{"error": tok.Error.Error(), "done": true})
			return
		}
		sendSSE(w, flusher, map[string]any{"content": tok.Content, "done": tok.Done})
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data map[string]any) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reaction string `json:"reaction"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Reaction == "" {
		writeError(w, http.StatusBadRequest, "Missing 'reaction' field.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.deps.BalanceTimeout)
	defer cancel()

	result, found, err := s.deps.Balancer.BalanceContext(ctx, body.Reaction)
	switch {
	case errors.Is(err, stoich.ErrMalformedReaction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "found": false, "reason": "search timed out"})
	case err != nil:
		s.fail(w, r, err)
	case !found:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "found": false})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"found":    true,
			"equation": result.String(),
			"left":     result.Left,
			"right":    result.Right,
		})
	}
}

func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	if s.deps.Visualize == nil {
		s.fail(w, r, ports.ErrUnavailable)
		return
	}
	var body struct {
		Molecule string `json:"molecule"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	st, err := s.deps.Visualize.Structure(r.Context(), body.Molecule)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cid": st.CID, "sdf": st.SDF})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if s.deps.Visualize == nil {
		s.fail(w, r, ports.ErrUnavailable)
		return
	}
	img, err := s.deps.Visualize.Render(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": img.Name, "url": img.ImageURL})
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	if s.deps.Grade == nil {
		s.fail(w, r, ports.ErrUnavailable)
		return
	}
	var body struct {
		Question string `json:"question"`
		Expected string `json:"expected"`
		Student  string `json:"student"`
		Answer   string `json:"answer"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	answer := body.Student
	if answer == "" {
		answer = body.Answer
	}

	g, err := s.deps.Grade.Grade(r.Context(), body.Question, body.Expected, answer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"similarity": strconv.FormatFloat(g.Similarity, 'f', 3, 64),
		"marks":      g.Marks,
		"feedback":   g.Feedback,
	})
}

func (s *Server) handleTeacherQuestions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Teacher == nil {
		s.fail(w, r, ports.ErrUnavailable)
		return
	}
	var body struct {
		Grade string `json:"grade"`
		Topic string `json:"topic"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	text, err := s.deps.Teacher.Questions(r.Context(), body.Grade, body.Topic)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "questions": text})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	matches, ok := s.search(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": sources(matches)})
}

// handleReference is the bare-array form of search used by the grading page.
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	matches, ok := s.search(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sources(matches))
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) ([]entities.Match, bool) {
	if s.deps.Search == nil {
		s.fail(w, r, ports.ErrUnavailable)
		return nil, false
	}
	matches, err := s.deps.Search.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return matches, true
}

// decode reads a size-limited JSON body into v, answering the error itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return false
	}
	return true
}

// fail maps use-case errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, usecases.ErrEmptyPrompt):
		msg = "Missing 'prompt' field."
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecases.ErrEmptyPrompt), errors.Is(err, usecases.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func history(turns []historyTurn) []entities.Message {
	if len(turns) == 0 {
		return nil
	}
	msgs := make([]entities.Message, 0, len(turns))
	for _, t := range turns {
		role := entities.Role(t.Role)
		if role != entities.RoleUser && role != entities.RoleAssistant {
			continue
		}
		msgs = append(msgs, entities.Message{Role: role, Content: t.Content})
	}
	return msgs
}

func sources(matches []entities.Match) []sourceBody {
	out := make([]sourceBody, len(matches))
	for i, m := range matches {
		out[i] = sourceBody{Text: m.Passage.Text, Score: m.Score, Source: m.Source}
	}
	return out
}
