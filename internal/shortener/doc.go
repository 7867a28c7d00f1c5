// Package shortener is the HTTP client for a Shlink-compatible URL
// shortening service.
//
// Two operations are exposed:
//
//	POST {base}/rest/v3/short-urls   create a short URL (X-Api-Key)
//	GET  {base}/{shortCode}          resolve a short code
//
// Redirects are never followed: a resolve returns the 301/302 response and
// its Location header so callers can classify it. Non-2xx statuses are not
// Go errors; [Response.Err] maps a response onto [StatusError] or
// [MissingCodeError] for callers that want error semantics.
package shortener
