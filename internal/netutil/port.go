// Package netutil selects the control API's listen address.
package netutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// SelectBindAddr returns preferred when it can be listened on. Otherwise,
// with autoFallback set, it returns the first free candidate. Candidates may
// name a port range such as "127.0.0.1:8191-8195".
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		if IsAddrAvailable(preferred) {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("bind address in use: %s", preferred)
		}
	}

	for _, c := range candidates {
		addrs, err := ExpandCandidate(c)
		if err != nil {
			return "", err
		}
		for _, addr := range addrs {
			if IsAddrAvailable(addr) {
				return addr, nil
			}
		}
	}
	return "", fmt.Errorf("no free bind address among %d candidates", len(candidates))
}

// ExpandCandidate turns "host:lo-hi" into one address per port. Plain
// addresses are returned unchanged.
func ExpandCandidate(candidate string) ([]string, error) {
	host, port, err := net.SplitHostPort(candidate)
	if err != nil {
		return nil, fmt.Errorf("bad bind candidate %q: %w", candidate, err)
	}
	loStr, hiStr, isRange := strings.Cut(port, "-")
	if !isRange {
		return []string{candidate}, nil
	}
	lo, errLo := strconv.Atoi(loStr)
	hi, errHi := strconv.Atoi(hiStr)
	if errLo != nil || errHi != nil || lo < 1 || hi > 65535 || lo > hi {
		return nil, fmt.Errorf("bad port range in bind candidate %q", candidate)
	}
	out := make([]string, 0, hi-lo+1)
	for p := lo; p <= hi; p++ {
		out = append(out, net.JoinHostPort(host, strconv.Itoa(p)))
	}
	return out, nil
}

// IsAddrAvailable reports whether addr can be listened on.
func IsAddrAvailable(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
