// Package proxy serves recorded backend responses.
//
// Each inbound request is fingerprinted and looked up in the response store.
// A live match is replayed with the CachedHeader marker set; otherwise the
// request is forwarded to the backend once, the response is persisted, and
// then written back to the caller.
//
// Server hosts the replay handler behind a chi router together with an admin
// listener for health checks and Prometheus metrics. It can run standalone
// (cmd/replaying-proxy) or be embedded in a test process:
//
//	srv, err := proxy.New(cfg)
//	if err != nil { ... }
//	if err := srv.Start(); err != nil { ... }
//	defer srv.Stop(context.Background())
package proxy
