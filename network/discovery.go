package network

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// SchemeOpenCoin is the URL scheme of service locations resolved through DNS.
const SchemeOpenCoin = "opencoin"

// SRVService is the SRV service name of opencoin endpoints:
// _opencoin._tcp.{domain}.
const SRVService = "opencoin"

// DNSResolver defines the interface for DNS lookups.
// This allows tests to mock DNS resolution.
type DNSResolver interface {
	// LookupSRV looks up SRV records for the given service, proto, and name.
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)
}

// defaultDNSResolver wraps the standard net package DNS functions.
type defaultDNSResolver struct{}

func (d *defaultDNSResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

// DefaultDNSResolver is the production DNS resolver using the net package.
var DefaultDNSResolver DNSResolver = &defaultDNSResolver{}

// ResolveLocation turns a service location from a currency description into
// an HTTP URL. http and https locations pass through unchanged. An
// opencoin://domain location with an explicit port maps to http://domain:port;
// without a port the _opencoin._tcp SRV records of domain pick the endpoint,
// lowest priority first and heaviest weight among equals.
func ResolveLocation(location string, resolver DNSResolver) (string, error) {
	if location == "" {
		return "", fmt.Errorf("%w: empty location", ErrInvalidLocation)
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}

	switch u.Scheme {
	case "http", "https":
		return location, nil
	case SchemeOpenCoin:
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocation, u.Scheme)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidLocation, location)
	}
	if u.Port() != "" {
		return (&url.URL{Scheme: "http", Host: u.Host, Path: u.Path}).String(), nil
	}

	if resolver == nil {
		resolver = DefaultDNSResolver
	}
	endpoints, err := resolveEndpoints(u.Hostname(), resolver)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "http", Host: endpoints[0], Path: u.Path}).String(), nil
}

// resolveEndpoints returns host:port addresses sorted by priority then weight.
func resolveEndpoints(domain string, resolver DNSResolver) ([]string, error) {
	_, addrs, err := resolver.LookupSRV(SRVService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV lookup for _%s._tcp.%s: %w", ErrDNSLookupFailed, SRVService, domain, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for _%s._tcp.%s", ErrNoEndpoints, SRVService, domain)
	}

	sort.SliceStable(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	endpoints := make([]string, len(addrs))
	for i, srv := range addrs {
		host := strings.TrimSuffix(srv.Target, ".")
		endpoints[i] = net.JoinHostPort(host, strconv.Itoa(int(srv.Port)))
	}
	return endpoints, nil
}

const (
	// defaultUpstream is the default recursive resolver for DNSSEC queries.
	defaultUpstream = "8.8.8.8:53"

	// dnssecTimeout is the timeout for DNSSEC queries.
	dnssecTimeout = 10 * time.Second

	// edns0BufSize is the EDNS0 UDP buffer size.
	edns0BufSize = 4096
)

// DNSSECResolver implements DNSResolver with DNSSEC validation.
// It relies on the upstream recursive resolver to perform DNSSEC validation
// and checks the AD (Authenticated Data) flag in responses.
type DNSSECResolver struct {
	// Upstream is the recursive resolver address (e.g., "8.8.8.8:53").
	Upstream string

	// Net is the transport passed to dns.Client ("" for UDP, "tcp").
	Net string
}

var _ DNSResolver = (*DNSSECResolver)(nil)

// NewDNSSECResolver creates a new DNSSECResolver.
// If upstream is empty, it defaults to "8.8.8.8:53".
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = defaultUpstream
	}
	return &DNSSECResolver{Upstream: upstream}
}

// query sends a DNS query with the DNSSEC OK flag set and requires the AD
// flag in the answer.
func (r *DNSSECResolver) query(name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true)

	client := &dns.Client{Net: r.Net, Timeout: dnssecTimeout}
	resp, _, err := client.Exchange(msg, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s %s: %w",
			ErrDNSLookupFailed, name, dns.TypeToString[qtype], err)
	}

	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("%w: query %s %s: rcode %s",
			ErrDNSLookupFailed, name, dns.TypeToString[qtype],
			dns.RcodeToString[resp.Rcode])
	}

	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: AD flag not set for %s %s",
			ErrDNSSECValidationFailed, name, dns.TypeToString[qtype])
	}
	return resp, nil
}

// LookupSRV looks up SRV records with DNSSEC validation.
// The first return value (cname) is always empty.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	qname := fmt.Sprintf("_%s._%s.%s", service, proto, name)

	resp, err := r.query(qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}

	var srvs []*net.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   strings.TrimSuffix(srv.Target, "."),
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}

	if len(srvs) == 0 {
		return "", nil, fmt.Errorf("%w: no SRV records for %s", ErrNoEndpoints, qname)
	}
	return "", srvs, nil
}
