// Package handlers holds the building blocks of the HTTP API: the JSON
// envelope, authentication and other middleware, and health checks.
//
// Health checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker(version)
//	checker.AddCheck("postgres", handlers.NewPingCheck(pool))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//	checker.AddCheck("nats", handlers.NewBrokerCheck(conn))
//
// User endpoints are authenticated with HS256 bearer tokens whose subject is
// the user ID. Internal endpoints take a service key checked against a
// bcrypt hash:
//
//	bearer := handlers.NewBearerAuth(secret, issuer)
//	service := handlers.NewServiceKeyAuth("X-Service-Key", hash)
//	h := handlers.ChainHandler(grantHandler, service.Middleware)
package handlers
