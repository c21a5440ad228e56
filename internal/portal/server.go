package portal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/logging"
	"github.com/swartninja/provisioner/internal/radio"
	"github.com/swartninja/provisioner/internal/version"
)

// Info is the JSON document served on /info
type Info struct {
	DeviceID         string          `json:"device_id"`
	SSID             string          `json:"ssid"`
	Version          string          `json:"version"`
	Fields           []Param         `json:"fields"`
	Networks         []radio.Network `json:"networks"`
	MinSignalQuality int             `json:"min_signal_quality"`
}

// SaveResponse is the answer to POST /save for clients that accept JSON
type SaveResponse struct {
	Saved  bool     `json:"saved"`
	Errors []string `json:"errors,omitempty"`
}

// captiveProbes are the connectivity-check paths of common client OSes.
// Redirecting them makes the client pop up the form.
var captiveProbes = []string{
	"/generate_204",
	"/gen_204",
	"/hotspot-detect.html",
	"/library/test/success.html",
	"/ncsi.txt",
	"/connecttest.txt",
	"/redirect",
	"/fwlink",
}

// portalServer serves the configuration form of one session
type portalServer struct {
	deviceID   string
	ssid       string
	host       string
	prefill    brokerconfig.ConnectionConfig
	networks   []radio.Network
	minQuality int
	hub        *hub

	mu          sync.Mutex
	accepted    bool
	submissions chan Submission
}

func newPortalServer(deviceID, ssid, host string, prefill brokerconfig.ConnectionConfig, networks []radio.Network, minQuality int) *portalServer {
	return &portalServer{
		deviceID:    deviceID,
		ssid:        ssid,
		host:        host,
		prefill:     prefill,
		networks:    networks,
		minQuality:  minQuality,
		hub:         newHub(),
		submissions: make(chan Submission, 1),
	}
}

func (p *portalServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", p.handleForm)
	mux.HandleFunc("POST /save", p.handleSave)
	mux.HandleFunc("GET /info", p.handleInfo)
	mux.HandleFunc("GET /events", p.handleEvents)
	for _, probe := range captiveProbes {
		mux.HandleFunc(probe, p.redirectToForm)
	}
	mux.HandleFunc("/", p.handleNotFound)
	return logRequests(mux)
}

type formPage struct {
	DeviceID string
	SSID     string
	Networks []radio.Network
	Params   []Param
	Errors   []string
	NetSSID  string
}

func (p *portalServer) handleForm(w http.ResponseWriter, r *http.Request) {
	p.renderForm(w, http.StatusOK, Params(p.prefill), "", nil)
}

func (p *portalServer) renderForm(w http.ResponseWriter, status int, params []Param, netSSID string, errs []error) {
	page := formPage{
		DeviceID: p.deviceID,
		SSID:     p.ssid,
		Networks: p.networks,
		Params:   params,
		NetSSID:  netSSID,
	}
	for _, err := range errs {
		page.Errors = append(page.Errors, err.Error())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := formTemplate.Execute(w, page); err != nil {
		logging.Warn("Failed to render portal form", zap.Error(err))
	}
}

func (p *portalServer) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	sub, errs := ParseSubmission(r.PostForm, p.prefill)
	if len(errs) > 0 {
		logging.Info("Rejected portal submission",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("errors", len(errs)),
		)
		if wantsJSON(r) {
			resp := SaveResponse{}
			for _, err := range errs {
				resp.Errors = append(resp.Errors, err.Error())
			}
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		p.renderForm(w, http.StatusUnprocessableEntity, Params(sub.Config), sub.Credentials.SSID, errs)
		return
	}

	p.mu.Lock()
	if p.accepted {
		p.mu.Unlock()
		if wantsJSON(r) {
			writeJSON(w, http.StatusConflict, SaveResponse{Errors: []string{"configuration already submitted"}})
			return
		}
		http.Error(w, "configuration already submitted", http.StatusConflict)
		return
	}
	p.accepted = true
	p.mu.Unlock()

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, SaveResponse{Saved: true})
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := savedTemplate.Execute(w, sub.Credentials.SSID); err != nil {
			logging.Warn("Failed to render saved page", zap.Error(err))
		}
	}
	p.submissions <- sub
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", zap.Error(err))
	}
}

func (p *portalServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := Info{
		DeviceID:         p.deviceID,
		SSID:             p.ssid,
		Version:          version.Version,
		Fields:           publicParams(p.prefill),
		Networks:         p.networks,
		MinSignalQuality: p.minQuality,
	}
	if info.Networks == nil {
		info.Networks = []radio.Network{}
	}

	writeJSON(w, http.StatusOK, info)
}

func (p *portalServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	p.hub.serve(w, r, Message{
		Type:      MessageHello,
		DeviceID:  p.deviceID,
		SSID:      p.ssid,
		Timestamp: time.Now(),
	})
}

func (p *portalServer) redirectToForm(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "http://"+p.host+"/", http.StatusFound)
}

// handleNotFound redirects requests addressed to foreign hosts (captured by
// the captive DNS) and 404s the rest.
func (p *portalServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if !p.isPortalHost(r.Host) {
		p.redirectToForm(w, r)
		return
	}
	http.NotFound(w, r)
}

func (p *portalServer) isPortalHost(host string) bool {
	if host == p.host {
		return true
	}
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		h = host
	}
	ph, _, err := net.SplitHostPort(p.host)
	if err != nil {
		ph = p.host
	}
	return h == ph
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1, user-scalable=no">
<title>{{.SSID}} setup</title>
<style>
body{font-family:sans-serif;max-width:420px;margin:auto;padding:1em}
input{width:100%;box-sizing:border-box;padding:6px;margin:4px 0 10px}
button{width:100%;padding:10px;font-size:1.1em}
.net{display:flex;justify-content:space-between;cursor:pointer;padding:3px 0}
.err{color:#b00020}
</style>
<script>function c(l){document.getElementById('s').value=l.dataset.ssid;document.getElementById('p').focus();}</script>
</head>
<body>
<h2>Device {{.DeviceID}}</h2>
{{range .Errors}}<p class="err">{{.}}</p>{{end}}
{{range .Networks}}<div class="net" data-ssid="{{.SSID}}" onclick="c(this)"><span>{{.SSID}}</span><span>{{.Quality}}%{{if .Secure}} &#128274;{{end}}</span></div>
{{else}}<p>No networks found</p>{{end}}
<form method="post" action="/save">
<input id="s" name="s" maxlength="32" placeholder="SSID" value="{{.NetSSID}}">
<input id="p" name="p" maxlength="63" type="password" placeholder="password">
{{range .Params}}<input id="{{.ID}}" name="{{.ID}}" maxlength="{{.MaxLength}}" placeholder="{{.Label}}" value="{{.Value}}"{{if .Secret}} type="password"{{end}}>
{{end}}<button type="submit">save</button>
</form>
</body>
</html>
`))

var savedTemplate = template.Must(template.New("saved").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>Saved</title></head>
<body style="font-family:sans-serif;max-width:420px;margin:auto;padding:1em">
<h2>Credentials saved</h2>
<p>{{if .}}Trying to connect to {{.}}.{{else}}Reconnecting to the known network.{{end}}</p>
<p>If it fails, reconnect to the access point to try again.</p>
</body>
</html>
`))
