// Package server is the HTTP layer of the configuration portal.
//
// It adapts the route functions of the api package onto a chi router,
// adds the event stream and metrics endpoints, and serves static assets
// for anything no route claims.
//
// # Lifecycle
//
// A Server satisfies wifimanager.HTTPListener. The manager starts it when
// a portal session opens (or at Begin when the portal routes are served
// outside the portal) and stops it when the session closes. Every Start
// builds a new http.Server, so the same Server can be started again for
// the next session.
//
//	srv := server.New(cfg, manager, server.WithEvents(hub))
//	manager.AttachHTTP(srv)
//
// # Responses
//
// Every route answers JSON, including errors: unknown paths get
// {"error":"Not found"}, wrong verbs {"error":"Method Not Allowed"} and a
// handler panic {"error":"Internal server error"}. With Basic
// authentication enabled, core routes answer 401 with a challenge until
// valid credentials arrive.
//
// # Static assets
//
// The asset directory is mounted at construction. A failed mount is
// followed by one format and retry; if that fails too the server runs in
// degraded mode and only the JSON routes are available.
//
// # HTTPS
//
// When the manager has HTTPS enabled, Start wraps the listener with the
// PEM certificate and key it was given.
package server
