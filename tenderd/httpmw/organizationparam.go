package httpmw

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/database/dbauthz"
	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/tenant"
)

type organizationParamContextKey struct{}

type organizationParam struct {
	id    uuid.UUID
	found bool
	err   error
}

// ExtractOrganizationParam reads the {organization} URL parameter, which
// may be a UUID or a slug. It only records what the caller asked for;
// ResolveTenant decides whether the caller may act there.
func ExtractOrganizationParam(db database.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := chi.URLParam(r, "organization")

			var param organizationParam
			if id, err := uuid.Parse(raw); err == nil {
				param = organizationParam{id: id, found: true}
			} else if raw != "" {
				//nolint:gocritic // Slug lookup happens before any subject exists.
				org, err := db.GetOrganizationByName(dbauthz.AsSystem(ctx), raw)
				switch {
				case err == nil:
					param = organizationParam{id: org.ID, found: true}
				case !database.IsNotFound(err):
					param = organizationParam{err: rbac.Unavailable(err)}
				}
			}
			ctx = context.WithValue(ctx, organizationParamContextKey{}, param)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// ResolveTenant resolves the request's subject against the organization
// recorded by ExtractOrganizationParam and stores it as the authorization
// actor. Nothing organization-scoped runs unless this succeeds.
func ResolveTenant(resolver *tenant.Resolver, onboardingURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			param, ok := ctx.Value(organizationParamContextKey{}).(organizationParam)
			if !ok {
				panic("developer error: ExtractOrganizationParam middleware not provided")
			}
			token := SessionToken(r)

			if !param.found {
				// Authenticate first so that unknown slugs are not
				// distinguishable before sign-in.
				if _, err := resolver.Authenticate(ctx, token); err != nil {
					WriteResolveError(rw, r, err, onboardingURL)
					return
				}
				if param.err != nil {
					WriteResolveError(rw, r, param.err, onboardingURL)
					return
				}
				httpapi.Forbidden(rw)
				return
			}

			subject, err := resolver.ResolveContext(ctx, token, param.id)
			if err != nil {
				WriteResolveError(rw, r, err, onboardingURL)
				return
			}
			ctx = dbauthz.As(ctx, subject)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// Subject returns the subject resolved by ResolveTenant.
func Subject(r *http.Request) rbac.Subject {
	subject, ok := dbauthz.ActorFromContext(r.Context())
	if !ok {
		panic("developer error: ResolveTenant middleware not provided")
	}
	return subject
}

// UUIDParam parses a URL parameter as a UUID, writing a 400 if it is not
// one.
func UUIDParam(rw http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpapi.Write(r.Context(), rw, http.StatusBadRequest, httpapi.Response{
			Message: "Invalid " + param + " id.",
			Detail:  err.Error(),
		})
		return uuid.Nil, false
	}
	return id, true
}
