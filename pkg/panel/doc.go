// Package panel is the Go client for xflash-panda proxy-node management
// panels. It registers nodes (trojan, shadowsocks, hysteria, hysteria2,
// vmess, anytls, tuic), fetches per-protocol configuration and user lists,
// reports traffic, and keeps registrations alive with heartbeats.
//
// # Connecting
//
//	c, err := panel.New("https://panel.example.com", token,
//	    panel.WithTimeout(10*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Registering a node
//
// Register returns an opaque register id that every subsequent call needs.
// Persist it yourself — the client keeps no state across restarts:
//
//	id, err := c.Register(ctx, panel.Trojan, nodeID, panel.RegisterRequest{
//	    Hostname: "node1.example.com",
//	    Port:     443,
//	})
//
// Session wraps the same calls with lifecycle bookkeeping (see NewSession)
// for callers that want local ordering checks.
//
// # User lists and the ETag cache
//
// Users sends If-None-Match automatically once a list has been seen. A 304
// answer comes back through the error channel so callers must branch:
//
//	users, err := c.Users(ctx, panel.Trojan, id)
//	switch {
//	case panel.IsNotModified(err):
//	    // nothing changed; last snapshot: c.CachedUsers(panel.Trojan, id)
//	case err != nil:
//	    return err
//	}
//
// # Error handling
//
// Every failure is a *panel.Error with one of four kinds. Branch with the
// helpers rather than string matching:
//
//	if panel.IsTimeout(err) { ... }            // transient, retry later
//	if panel.StatusCode(err) == 401 { ... }    // token rejected
//	if panel.IsParseError(err) { ... }         // panel/client version skew
//
// The client never retries; wrap calls with your own backoff where needed.
//
// # Traffic and liveness
//
//	err = c.Submit(ctx, panel.Trojan, id, []panel.UserTraffic{
//	    {UserID: 1, Upload: 1024, Download: 4096},
//	})
//	err = c.Heartbeat(ctx, panel.Trojan, id)
//
// Heartbeat scheduling belongs to the caller; the client runs no
// background loops.
package panel
