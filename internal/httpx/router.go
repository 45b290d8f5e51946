package httpx

import (
	"net/http"

	"github.com/you/go-globe-planner/internal/auth"
	"github.com/you/go-globe-planner/internal/users"
)

// NewRouter wires handlers with their dependencies. /health and /auth/* are
// public; everything else needs a JWT.
func NewRouter(planner Planner, authSvc *auth.Service, store users.Store) http.Handler {
	public := http.NewServeMux()
	public.HandleFunc("/health", Health)
	public.HandleFunc("/auth/signup", auth.SignupHandler(authSvc))
	public.HandleFunc("/auth/login", auth.LoginHandler(authSvc))
	public.HandleFunc("/auth/logout", auth.LogoutHandler)

	protected := http.NewServeMux()
	protected.HandleFunc("/plan", PlanHandler(planner))
	protected.HandleFunc("/profile", ProfileHandler(store))
	protected.HandleFunc("/sse/plan", SubscribeSSEHandler(planner))
	protected.HandleFunc("/ws/plan", SubscribeWSHandler(planner))

	return Logging(auth.JWTMiddleware(public, protected, authSvc))
}
