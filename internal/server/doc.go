// Package server exposes batch processes over HTTP.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] on [http.ServeMux] method patterns ("POST /batch/{id}/step").
// [Middleware] added first runs outermost.
//
// # Batch Endpoints
//
// [BatchHandler] lets a browser or script drive a batch one request per step:
//
//	POST /batch/{id}/step      {"step": 1, "roles": ["subscriber"]}
//	GET  /batch/{id}/progress
//
// Step 1 takes the snapshot first. A response with "step": "done" means the run finished
// and its progress was cleared. Errors carry a stable code, e.g. {"code": "no_roles_found"}.
//
// [PrincipalMiddleware] resolves the acting user from an "Authorization: Bearer" token listed
// in server.tokens. The X-Principal header is honored only when server.trusted_proxy is set.
// Every step is refused with 403 unless that user's roles grant manage_affiliates.
//
// # Handler Interface
//
// A [Handler] is an [http.Handler] that also lists the mux patterns it serves, so one
// handler can own several routes.
package server
