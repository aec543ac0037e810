package handlers

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// joinURL is the link players open to join the session with code.
func (s *Server) joinURL(r *http.Request, code string) string {
	base := strings.TrimSuffix(s.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join/" + code
}

// qr renders the session's join link as a PNG.
func (s *Server) qr(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(r, sess.Code), qrcode.Medium, qrSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}
