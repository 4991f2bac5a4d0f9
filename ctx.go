package accounts

import "context"

var prompterCtxKey = &contextKey{"prompter"}
var actorCtxKey = &contextKey{"actor"}

type contextKey struct {
	name string
}

// WithPrompter scopes a Prompter to ctx. It overrides the Manager default for
// confirmations and link prompts issued under ctx.
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	return context.WithValue(ctx, prompterCtxKey, p)
}

// PrompterFromContext returns the Prompter scoped to ctx.
func PrompterFromContext(ctx context.Context) (Prompter, bool) {
	p, ok := ctx.Value(prompterCtxKey).(Prompter)
	return p, ok && p != nil
}

// WithActor stores the acting principal in ctx
func WithActor(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext returns the acting principal stored in ctx.
func ActorFromContext(ctx context.Context) (ActorRef, bool) {
	actor, ok := ctx.Value(actorCtxKey).(ActorRef)
	return actor, ok && actor.ID != ""
}
