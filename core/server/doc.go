// Package server holds the HTTP plumbing shared by every endpoint.
//
// New builds a fiber app with request ids, request logging and a JSON error
// handler. Bind and Serve split listening from serving so that callers can
// surface bind errors before anything else starts, and so that an inherited
// listener (a worker's socket) can be served the same way as a fresh one.
//
// # Usage
//
//	app := server.New("control", cfg.Server, log)
//	ln, err := server.Bind("127.0.0.1:9293")
//	if err != nil {
//	    return err
//	}
//	return server.Serve(ctx, app, ln, cfg.Server)
package server
