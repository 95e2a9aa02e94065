// Package auth provides accounts, sessions and request guards for the web UI
// and the JSON API.
//
// Users register with a username, email and password, then log in by email.
// The session (alexedwards/scs) stores the user ID; it lives in the SQLite
// database when one is configured and in memory otherwise. Every page except
// the login, register and health endpoints requires a session. Anonymous API
// calls get 401, browsers are redirected to /login?next=<path>.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex>              # CSRF signing key, generated if empty
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true               # HTTPS-only cookies
//	AUTH_LOGIN_RATE_PER_MINUTE=10          # per client IP
//	AUTH_LOGIN_BURST=5
//
// # Usage
//
//	service := auth.NewService(store, cfg.Auth, log)
//	sessions, _ := auth.NewSessionManager(sqlDB, cfg.Auth)
//	router.Use(sessions.LoadAndSave(log))
//	router.Use(auth.NewMiddleware(service, sessions, log).Handler())
//
// Handlers read the owner with auth.GetUserID(c).
package auth
