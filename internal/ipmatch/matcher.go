// Package ipmatch answers whether an address is covered by the whitelist.
package ipmatch

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/models"
)

// Rule is a whitelist record with its parsed network.
type Rule struct {
	Prefix netip.Prefix
	Record models.Record
}

// Matcher holds the rules built from one snapshot of the records.
type Matcher struct {
	rules   []Rule
	skipped int
}

// Options controls which records become rules.
type Options struct {
	IncludeExpired bool
	Now            time.Time
}

// New builds a matcher. Records whose IP does not parse are skipped and
// counted; expired records are skipped unless IncludeExpired is set.
func New(records []models.Record, opts Options) *Matcher {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	m := &Matcher{}
	for _, r := range records {
		if !opts.IncludeExpired && r.Expired(now) {
			continue
		}
		prefix, err := ParsePrefix(r.IPAddress)
		if err != nil {
			logger.Debug("Skipping record with unparseable IP", "record", r.ID, "ip", r.IPAddress)
			m.skipped++
			continue
		}
		m.rules = append(m.rules, Rule{Prefix: prefix, Record: r})
	}

	// Most specific networks first.
	slices.SortStableFunc(m.rules, func(a, b Rule) int {
		return b.Prefix.Bits() - a.Prefix.Bits()
	})
	return m
}

// ParsePrefix reads an address as a single-host prefix, or a CIDR prefix.
func ParsePrefix(ip string) (netip.Prefix, error) {
	ip = strings.TrimSpace(ip)
	if addr, err := netip.ParseAddr(ip); err == nil {
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	prefix, err := netip.ParsePrefix(ip)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid address or prefix %q", ip)
	}
	return prefix.Masked(), nil
}

// Match returns every rule covering addr, most specific first.
func (m *Matcher) Match(addr netip.Addr) []Rule {
	addr = addr.Unmap()
	var out []Rule
	for _, r := range m.rules {
		if r.Prefix.Contains(addr) {
			out = append(out, r)
		}
	}
	return out
}

// Allowed reports whether addr is covered and by which record.
func (m *Matcher) Allowed(addr netip.Addr) (models.Record, bool) {
	matches := m.Match(addr)
	if len(matches) == 0 {
		return models.Record{}, false
	}
	return matches[0].Record, true
}

// Len returns the number of active rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Skipped returns how many records had an unparseable IP.
func (m *Matcher) Skipped() int {
	return m.skipped
}

// Remaining returns the queries left this month on r, never negative.
func Remaining(r models.Record) int64 {
	left := int64(r.MonthlyQuota) - int64(r.Loaded)
	if left < 0 {
		return 0
	}
	return left
}
