package playerresolver

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/ruteri/feldman-vss-backend/roster"
)

// DefaultResolverAddr is the local stub resolver queried for SRV records.
const DefaultResolverAddr = "127.0.0.53:53"

// Resolver turns roster endpoints into concrete base URLs for the dealer's
// share fan-out. Endpoints given as srv:// service domains are resolved
// through DNS SRV lookups; plain http(s) endpoints pass through unchanged.
type Resolver struct {
	// ResolverAddr is the DNS server queried for SRV records. Defaults to
	// the local stub resolver.
	ResolverAddr string

	client *dns.Client
}

// New creates a resolver using the local stub resolver.
func New() *Resolver {
	return &Resolver{
		ResolverAddr: DefaultResolverAddr,
		client:       new(dns.Client),
	}
}

// Endpoints resolves a player's endpoint to one or more base URLs.
//
// Endpoint formats:
//   - http://host:port or https://host:port - returned as-is
//   - srv://_vss._tcp.example.com - resolved via DNS SRV, one URL per record
func (r *Resolver) Endpoints(player roster.Player) ([]string, error) {
	if player.Endpoint == "" {
		return nil, fmt.Errorf("player %s has no endpoint", player.ID)
	}

	parsed, err := url.Parse(player.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint for %s: %w", player.ID, err)
	}

	switch parsed.Scheme {
	case "http", "https":
		return []string{player.Endpoint}, nil
	case "srv":
		return r.resolveSRV(parsed.Host)
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q for %s", parsed.Scheme, player.ID)
	}
}

// resolveSRV queries SRV records for the service domain and returns one
// http base URL per record, using each record's target and port.
func (r *Resolver) resolveSRV(domain string) ([]string, error) {
	msg := new(dns.Msg)
	msg.Id = dns.Id()
	msg.RecursionDesired = true
	msg.Question = []dns.Question{{
		Name:   dns.Fqdn(domain),
		Qtype:  dns.TypeSRV,
		Qclass: dns.ClassINET,
	}}

	resolverAddr := r.ResolverAddr
	if resolverAddr == "" {
		resolverAddr = DefaultResolverAddr
	}

	client := r.client
	if client == nil {
		client = new(dns.Client)
	}

	in, _, err := client.Exchange(msg, resolverAddr)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s: %w", domain, err)
	}

	endpoints := make([]string, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			host := strings.TrimSuffix(srv.Target, ".")
			endpoints = append(endpoints, "http://"+net.JoinHostPort(host, strconv.Itoa(int(srv.Port))))
		}
	}

	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no SRV records for %s", domain)
	}

	return endpoints, nil
}
