package probe

import "net/url"

// TLSPolicyFor derives the TLS mode from a connection string. Only an explicit
// sslmode=disable turns encryption off; unparseable strings keep the lenient default.
func TLSPolicyFor(connString string) TLSMode {
	u, err := url.Parse(connString)
	if err != nil {
		return TLSInsecure
	}
	if u.Query().Get("sslmode") == "disable" {
		return TLSDisabled
	}
	return TLSInsecure
}
