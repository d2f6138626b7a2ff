package app

import (
	"errors"
	"net/http"
	"strings"

	"github.com/baptistelechat/overti-me/internal/auth"
	"github.com/baptistelechat/overti-me/internal/rest"
	"github.com/baptistelechat/overti-me/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(requestLogger)
	if deps.Tokens != nil {
		r.Use(bearerUser(deps.Tokens, deps.UserService))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.Debugf("%s %s", req.Method, req.URL.Path)
		next.ServeHTTP(w, req)
	})
}

// bearerUser puts the account of a valid bearer token into the request context.
// Requests without a token pass through anonymously.
func bearerUser(tokens *auth.Tokens, users user.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			header := req.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, req)
				return
			}
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				rest.WriteError(w, http.StatusUnauthorized, "Unsupported authorization scheme", "")
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				log.Debugf("rejected token: %v", err)
				rest.WriteError(w, http.StatusUnauthorized, "Invalid token", "")
				return
			}

			ctx := req.Context()
			u, err := users.GetUserByUid(ctx, claims.Uid)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					log.Debugf("user not found: %s", claims.Uid)
					rest.WriteError(w, http.StatusUnauthorized, "Unknown account", "")
					return
				}
				log.Errorf("failed to get user: %v", err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, req.WithContext(user.WithUser(ctx, u)))
		})
	}
}
