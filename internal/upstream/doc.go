// Package upstream implements the retry-wrapped client for the backing
// data API.
//
// Requests go through a bounded concurrency permit pool and an exponential
// backoff loop. Connection failures and 5xx responses are retried; 4xx
// responses fail immediately with ErrPermanent. Authentication is a Bearer
// token, omitted when the configured key is the guest sentinel.
package upstream
