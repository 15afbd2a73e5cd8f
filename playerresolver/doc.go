// Package playerresolver resolves roster endpoints to reachable base URLs.
// Plain http(s) endpoints pass through; srv:// service domains are resolved
// to host:port pairs through DNS SRV lookups against the local resolver.
// The dealer's push fan-out uses it to locate player inboxes.
package playerresolver
