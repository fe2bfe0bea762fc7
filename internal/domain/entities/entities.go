// Package entities contains core business entities.
// These are plain domain objects with no knowledge of transport or storage.
package entities

import (
	"time"

	"github.com/0xcro3dile/chemed-go/internal/domain/stoich"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn sent to a language model.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is everything a language model needs for one answer.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ChatRequest is a student question with optional earlier turns.
type ChatRequest struct {
	Prompt  string
	History []Message
}

// ChatResponse is the tutor's reply.
type ChatResponse struct {
	Answer  string
	OnTopic bool

	// Reaction is set when the prompt asked for a balance and the local
	// balancer solved it. Verified is true exactly when Reaction is set.
	Reaction *stoich.BalancedReaction
	Verified bool

	Sources []Match
}

// Equation returns the verified equation, or "" when there is none.
func (r *ChatResponse) Equation() string {
	if r.Reaction == nil {
		return ""
	}
	return r.Reaction.String()
}

// Document is a piece of chemistry reference text (course notes, seed facts).
type Document struct {
	ID        string
	Title     string
	Source    string // file path or "seed"
	Content   string
	CreatedAt time.Time
}

// Passage is an embedded slice of a Document.
type Passage struct {
	ID         string
	DocumentID string
	Text       string
	Index      int       // position in the document
	Embedding  []float32 // populated by the embedding adapter
}

// Match is a knowledge search hit.
type Match struct {
	Passage Passage
	Score   float64 // cosine similarity
	Source  string
}

// Grade is the similarity-based mark for a student answer.
type Grade struct {
	Similarity float64
	Marks      int // 1..5
	Feedback   string
}

// Structure is a 3D structure record fetched for client-side rendering.
type Structure struct {
	Name string
	CID  int64
	SDF  string
}

// Rendering is a 2D depiction produced by the molecule render service.
type Rendering struct {
	Name     string
	ImageURL string // data: URL
}
