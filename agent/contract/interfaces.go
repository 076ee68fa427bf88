package contract

import "context"

type ResolveRequest struct {
	Message  string
	History  []ChatTurn
	Language string
	Context  string
}

// Resolver never fails: model and parse errors come back as a NONE intent
// with a fallback apology.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) ResolvedIntent
}

type PhraseRequest struct {
	Action   Action
	Draft    string
	Facts    []string
	Language string
}

// Phraser rewrites a deterministic draft into a friendlier reply.
type Phraser interface {
	Phrase(ctx context.Context, req PhraseRequest) (string, error)
}
