/*
Package api holds what the dashboard HTTP surface shares across handlers.

The handler subpackages each own one route group and follow the same shape,
NewHandler(deps..., log) plus RegisterRoutes(chi.Router):

 1. authhandler - login, /auth/me and the bearer-token middleware
 2. sitehandler - WordOps site listing and lifecycle
 3. serverhandler - host metrics, services, log tail and the log stream
 4. clients - a Go client for the API and its testify mock

This package itself provides the request and response bodies, validated with
go-playground/validator using the domain, runtime_version and proxy_target
tags, the HTTPServerConfig consumed by package httpserver, and the error
mapping every handler uses:

	validation error              400
	unauthenticated               401
	entity not found              404
	login throttled               429
	command not found / failed    503
	command timeout               503
	monitoring API failure        503
	anything else                 500 (logged, generic body)

Error bodies are always {"detail": "..."}. For upstream failures the detail
carries the external tool's diagnostic unchanged.
*/
package api
