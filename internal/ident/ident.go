package ident

import (
	"net/netip"
	"strings"
)

// BroadcastMAC is the all-ones hardware address; sightings carrying it are
// treated as having no hardware address at all.
const BroadcastMAC = "ff:ff:ff:ff:ff:ff"

const maxProtocolNameLen = 50

// ValidIP reports whether s is syntactically valid IPv4 or IPv6 text.
func ValidIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

// ValidMAC reports whether s is an acceptable hardware address. The field
// is optional, so empty is valid; anything non-empty must be six
// colon-separated two-digit hex octets, case-insensitive.
func ValidMAC(s string) bool {
	if s == "" {
		return true
	}
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 || !isHexDigit(p[0]) || !isHexDigit(p[1]) {
			return false
		}
	}
	return true
}

// ValidProtocolName reports whether s is a usable protocol label:
// letters, digits, underscore or hyphen, at most 50 characters.
func ValidProtocolName(s string) bool {
	if s == "" || len(s) > maxProtocolNameLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

// BroadcastOrMulticast reports whether s names an address that must never
// enter the inventory: an IPv4 address whose final octet is the all-ones
// broadcast pattern, an IPv4 address in 224.0.0.0-239.255.255.255, or an
// IPv6 multicast address. Unparseable input returns false; ValidIP gates
// that separately.
func BroadcastOrMulticast(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	if addr.Is4() || addr.Is4In6() {
		b := addr.Unmap().As4()
		if b[3] == 0xff {
			return true
		}
		return b[0] >= 224 && b[0] <= 239
	}
	return addr.IsMulticast()
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
