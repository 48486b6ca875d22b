package http

import (
	"crypto/subtle"
	"encoding/xml"
	"net/http"
	"strings"

	"kmbot/internal/command"
	"kmbot/internal/core"
)

// MissingUserReply answers a /cron request without ?user=.
const MissingUserReply = "Passe ?user=whatsapp:+55SEU_NUM"

const invalidDateReply = command.InvalidDateReply

// parseDate parses a YYYY-MM-DD query value, using fallback when empty.
func parseDate(s string, fallback core.Date) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	return core.ParseDate(s)
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// senderKey is the rate limit key of a webhook request.
func senderKey(r *http.Request) string {
	return sanitizeInput(r.FormValue("From"))
}

// authorized reports whether r carries the bearer token. An empty token
// disables the check.
func authorized(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) == 1
}

// requestURL rebuilds the absolute URL the client called, honouring
// X-Forwarded-Proto from a terminating proxy.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// formParams flattens the POST form to the first value of each field.
func formParams(r *http.Request) map[string]string {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// writeTwiML answers a Twilio webhook with a single message.
func writeTwiML(w http.ResponseWriter, body string) error {
	out, err := xml.Marshal(twimlResponse{Message: body})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(append([]byte(xml.Header), out...))
	return err
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
