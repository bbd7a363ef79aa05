package httpmw

import (
	"context"
	"net/http"

	"golang.org/x/xerrors"

	"github.com/tenderd/tenderd/tenderd/database"
	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/tenant"
)

const (
	SignedOutErrorMessage = "You are signed out or your session has expired. Please sign in again to continue."
	NoOrganizationMessage = "You have no active organization. Create an organization or switch to one you are a member of."
	MismatchMessage       = "This organization is not your active organization. Switch organizations before acting in it."
)

type sessionContextKey struct{}

// SessionToken returns the session token from the header or the cookie,
// preferring the header.
func SessionToken(r *http.Request) string {
	if token := r.Header.Get(tenant.SessionTokenHeader); token != "" {
		return token
	}
	if cookie, err := r.Cookie(tenant.SessionTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Session returns the session from the ExtractSession handler.
func Session(r *http.Request) database.Session {
	session, ok := r.Context().Value(sessionContextKey{}).(database.Session)
	if !ok {
		panic("developer error: ExtractSession middleware not provided")
	}
	return session
}

// ExtractSession authenticates the request without requiring an active
// organization. It is used by routes that are not organization-scoped.
func ExtractSession(resolver *tenant.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			session, err := resolver.Authenticate(ctx, SessionToken(r))
			if err != nil {
				WriteResolveError(rw, r, err, "")
				return
			}
			ctx = context.WithValue(ctx, sessionContextKey{}, session)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// WriteResolveError writes the response for an error returned by the
// tenant resolver. When onboardingURL is set a request without an active
// organization is redirected there instead of rejected.
func WriteResolveError(rw http.ResponseWriter, r *http.Request, err error, onboardingURL string) {
	ctx := r.Context()
	switch {
	case xerrors.Is(err, tenant.ErrUnauthenticated):
		httpapi.Write(ctx, rw, http.StatusUnauthorized, httpapi.Response{
			Message: SignedOutErrorMessage,
			Detail:  err.Error(),
		})
	case xerrors.Is(err, tenant.ErrNoActiveOrganization):
		if onboardingURL != "" {
			http.Redirect(rw, r, onboardingURL, http.StatusSeeOther)
			return
		}
		httpapi.Write(ctx, rw, http.StatusConflict, httpapi.Response{
			Message: NoOrganizationMessage,
		})
	case xerrors.Is(err, tenant.ErrOrganizationMismatch):
		httpapi.Write(ctx, rw, http.StatusConflict, httpapi.Response{
			Message: MismatchMessage,
		})
	case xerrors.Is(err, rbac.ErrTemporarilyUnavailable):
		httpapi.Write(ctx, rw, http.StatusServiceUnavailable, httpapi.Response{
			Message: "Authorization is temporarily unavailable. Please try again.",
		})
	case rbac.IsUnauthorizedError(err):
		httpapi.Forbidden(rw)
	default:
		httpapi.InternalServerError(rw)
	}
}
