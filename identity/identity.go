// Package identity carries the authenticated actor id through request
// contexts. The id is supplied by the external session provider and trusted
// as given; no credential verification happens in this process.
package identity

import "context"

// Anonymous is the subject of requests without an established session.
const Anonymous = "system:anonymous"

type contextKeySubject struct{}

func WithSubject(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, contextKeySubject{}, actorID)
}

func GetSubject(ctx context.Context) string {
	actorID, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok {
		return Anonymous
	}

	return actorID
}

func IsAuthenticated(ctx context.Context) bool {
	return GetSubject(ctx) != Anonymous
}
