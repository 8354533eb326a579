package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider is the participant-side snapshot the admin server exposes
// on /status. pkg/rtps/participant.Participant.Stats satisfies this without
// either package importing the other.
type StatusProvider interface {
	Stats() (participants, readers, writers int)
}

type handler struct {
	promHandler http.Handler
	enablePprof bool
	status      StatusProvider
}

// NewServer returns an initialized `http.Server`, configured to listen on an
// address. status may be nil, in which case /status reports zero counts
// instead of a running participant's.
func NewServer(addr string, enablePprof bool, status StatusProvider) *http.Server {
	h := &handler{
		promHandler: promhttp.Handler(),
		enablePprof: enablePprof,
		status:      status,
	}

	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	debugPathPrefix := "/debug/pprof/"
	if h.enablePprof && strings.HasPrefix(req.URL.Path, debugPathPrefix) {
		switch req.URL.Path {
		case fmt.Sprintf("%scmdline", debugPathPrefix):
			pprof.Cmdline(w, req)
		case fmt.Sprintf("%sprofile", debugPathPrefix):
			pprof.Profile(w, req)
		case fmt.Sprintf("%strace", debugPathPrefix):
			pprof.Trace(w, req)
		case fmt.Sprintf("%ssymbol", debugPathPrefix):
			pprof.Symbol(w, req)
		default:
			pprof.Index(w, req)
		}
		return
	}
	switch req.URL.Path {
	case "/metrics":
		h.promHandler.ServeHTTP(w, req)
	case "/ping":
		h.servePing(w)
	case "/ready":
		h.serveReady(w)
	case "/status":
		h.serveStatus(w)
	default:
		http.NotFound(w, req)
	}
}

func (h *handler) servePing(w http.ResponseWriter) {
	w.Write([]byte("pong\n"))
}

func (h *handler) serveReady(w http.ResponseWriter) {
	w.Write([]byte("ok\n"))
}

// statusBody is the /status response shape: remote participants this
// participant currently tracks, and how many local readers/writers it owns.
type statusBody struct {
	Participants int `json:"participants"`
	Readers      int `json:"readers"`
	Writers      int `json:"writers"`
}

func (h *handler) serveStatus(w http.ResponseWriter) {
	var body statusBody
	if h.status != nil {
		body.Participants, body.Readers, body.Writers = h.status.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
