package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/auth"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/julienschmidt/httprouter"
)

type identityKey struct{}

// RequireIdentity rejects requests the provider cannot identify and stores the
// identity on the request context for the wrapped handler.
func RequireIdentity(ids auth.IdentityProvider) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			id, err := ids.Identify(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    string(apperr.CodeUnauthenticated),
					"message": apperr.Message(err),
				})
				return
			}
			next(w, r.WithContext(WithIdentity(r.Context(), id)), ps)
		}
	}
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by RequireIdentity.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	return id, ok
}
