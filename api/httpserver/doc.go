// Package httpserver provides a reusable HTTP server implementation with common functionality
// for FoldNet ledger components.
//
// The httpserver package implements a base HTTP server with standard health endpoints,
// graceful shutdown capabilities, metrics, and flexible routing, plus the LedgerHandler
// exposing the batch ledger's entry points.
//
// # Key Components
//
//   - BaseServer: Core HTTP server with health checks, metrics, and lifecycle management
//   - RouteRegistrar: Interface for components to register their routes with the server
//   - LedgerHandler: Routes for governance, batch lifecycle, submissions, and decryption
//
// # Server Lifecycle
//
// The BaseServer implements a complete server lifecycle:
//
//  1. Initialization: Configure server with HTTP settings and route registrars
//  2. Startup: Run HTTP and metrics servers in background goroutines
//  3. Operation: Handle requests with proper logging and monitoring
//  4. Readiness Control: Support drain/undrain operations for load balancers
//  5. Graceful Shutdown: Wait for in-flight requests to complete
//
// # Health and Diagnostics
//
// All servers built with BaseServer automatically include:
//
//   - Liveness Check: Simple endpoint to verify server is running (/livez)
//   - Readiness Check: Endpoint indicating if server is ready to accept requests (/readyz)
//   - Drain Control: Endpoints to prepare for graceful shutdown (/drain, /undrain)
//   - Metrics: Optional Prometheus-compatible metrics endpoint
//   - Profiling: Optional pprof debugging endpoints when enabled
//
// # Authentication
//
// Mutating ledger routes expect a protocol.Signed envelope. The signer's
// public key becomes the caller address the ledger authorizes against, so the
// HTTP layer adds no identity of its own. The oracle callback is the one
// exception: it is authenticated by the decryption proof it carries.
//
// # Usage Example
//
//	handler := httpserver.NewLedgerHandler(l, log, nil)
//	srv, err := httpserver.New(cfg, handler)
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
