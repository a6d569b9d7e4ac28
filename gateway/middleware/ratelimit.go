package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"creditguild/crypto"
	"creditguild/observability"
)

type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
	// TrustedProxies lists the CIDRs (or bare addresses) allowed to set
	// X-Real-IP and X-Forwarded-For. Other peers are keyed by their own address.
	TrustedProxies []string
}

// ParseTrustedProxies turns CIDR or bare address strings into prefixes.
func ParseTrustedProxies(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles each client independently. Authenticated requests
// are keyed by account, anonymous ones by remote address.
type RateLimiter struct {
	limit    RateLimit
	idleTTL  time.Duration
	mu       sync.Mutex
	visitors map[string]*rateEntry
	proxies  []netip.Prefix
	clockNow func() time.Time
}

func NewRateLimiter(limit RateLimit) (*RateLimiter, error) {
	proxies, err := ParseTrustedProxies(limit.TrustedProxies)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		limit:    limit,
		idleTTL:  5 * time.Minute,
		visitors: make(map[string]*rateEntry),
		proxies:  proxies,
		clockNow: time.Now,
	}, nil
}

func (r *RateLimiter) Middleware(group string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r == nil || r.limit.RequestsPerMinute <= 0 {
				next.ServeHTTP(w, req)
				return
			}
			if !r.allow(r.clientID(req)) {
				observability.Gateway().RecordThrottle(group, "client")
				writeProblem(w, http.StatusTooManyRequests, errThrottled)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *RateLimiter) allow(id string) bool {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.visitors {
		if now.Sub(entry.lastSeen) > r.idleTTL {
			delete(r.visitors, key)
		}
	}
	entry, ok := r.visitors[id]
	if !ok {
		perSecond := r.limit.RequestsPerMinute / 60.0
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (r *RateLimiter) clientID(req *http.Request) string {
	if caller, ok := Caller(req.Context()); ok {
		return crypto.FormatAddress(caller)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if !r.trusted(host) {
		return host
	}
	if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); ip != "" {
		if parsed, err := netip.ParseAddr(ip); err == nil {
			return parsed.String()
		}
	}
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if parsed, err := netip.ParseAddr(first); err == nil {
			return parsed.String()
		}
	}
	return host
}

func (r *RateLimiter) trusted(host string) bool {
	if len(r.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range r.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
