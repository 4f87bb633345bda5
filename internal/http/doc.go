// Package http provides the HTTP(S) transport for bundle downloads.
//
// This package handles:
//   - Connection pooling
//   - Streaming GET requests (the body is never buffered in memory)
//   - Retry with exponential backoff for connection failures and 5xx
//   - Mapping of non-2xx statuses to sentinel errors
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	body, size, err := client.Open(ctx, "https://cdn.example.com/bundles/prefabs")
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
//	// size is -1 when the server does not send Content-Length
package http
