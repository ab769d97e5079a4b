package faucet

import (
	"net"
	"net/http"
	"strings"
)

// OriginFunc extrai a identidade de rede do chamador de um request.
// É a chave do espaço de cota SubjectOrigin.
type OriginFunc func(r *http.Request) string

// DefaultOriginFunc devolve a extração padrão.
//
// Com trustXFF ligado (faucet atrás de proxy reverso), vale o primeiro IP do
// X-Forwarded-For (cliente original); senão, o host do RemoteAddr.
func DefaultOriginFunc(trustXFF bool) OriginFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
