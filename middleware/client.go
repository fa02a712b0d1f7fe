package middleware

import (
	"net"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// ClientMetadata copies the caller's address and User-Agent into the
// request context so Issue and Refresh record them on the session. The
// address is taken from RemoteAddr; run a trusted proxy middleware first
// when the service sits behind one.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ua := r.UserAgent(); ua != "" {
			ctx = goSession.WithUserAgent(ctx, ua)
		}
		if ip := remoteIP(r.RemoteAddr); ip != "" {
			ctx = goSession.WithClientIP(ctx, ip)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
