package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/paulmach/orb"

	"indoornav/internal/mapping"
	"indoornav/internal/overlay"
	"indoornav/internal/position"
	"indoornav/internal/routing"
)

// Locator is the read side of the positioning pipeline.
type Locator interface {
	LastFix() (position.Fix, bool)
	Readings() []position.Reading
}

type Server struct {
	locator Locator
	nav     *routing.Navigator
	mapper  *mapping.Mapper
	nodes   *mapping.NodeTable
	overlay *overlay.Overlay
	plan    image.Image
	hub     *Hub
	log     *slog.Logger
}

type Deps struct {
	Locator   Locator
	Navigator *routing.Navigator
	Mapper    *mapping.Mapper
	Nodes     *mapping.NodeTable
	Plan      image.Image
}

func NewServer(d Deps, log *slog.Logger) *Server {
	return &Server{
		locator: d.Locator,
		nav:     d.Navigator,
		mapper:  d.Mapper,
		nodes:   d.Nodes,
		overlay: overlay.New(d.Mapper, d.Nodes),
		plan:    d.Plan,
		hub:     NewHub(log),
		log:     log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.ServeWS(w, r, s.hello)
	})
	mux.HandleFunc("GET /position", s.handlePosition)
	mux.HandleFunc("GET /readings", s.handleReadings)
	mux.HandleFunc("GET /selection", s.handleSelection)
	mux.HandleFunc("POST /click", s.handleClick)
	mux.HandleFunc("POST /profile", s.handleProfile)
	mux.HandleFunc("POST /route", s.handleRoute)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /overlay.png", s.handleOverlay)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type fixMessage struct {
	Type    string    `json:"type"`
	World   point     `json:"world"`
	Raw     point     `json:"raw"`
	Pixel   point     `json:"pixel"`
	Node    *int      `json:"node"`
	Beacons int       `json:"beacons"`
	OffPath *float64  `json:"off_path_m,omitempty"`
	At      time.Time `json:"at"`
}

func (s *Server) fixMessage(fix position.Fix) fixMessage {
	px := s.mapper.WorldToImage(fix.X, fix.Y)
	msg := fixMessage{
		Type:    "fix",
		World:   point{fix.X, fix.Y},
		Raw:     point{fix.RawX, fix.RawY},
		Pixel:   point{px.X, px.Y},
		Beacons: fix.Beacons,
		At:      fix.At,
	}
	if n, ok := s.nodes.NearestNode(fix.X, fix.Y); ok {
		msg.Node = &n.ID
	}
	if route := s.nav.Selection().Route.Nodes; len(route) > 0 {
		d := s.overlay.DistanceToPath(fix.X, fix.Y, route)
		msg.OffPath = &d
	}
	return msg
}

// Publish pushes a fix to every websocket client.
func (s *Server) Publish(fix position.Fix) {
	data, err := json.Marshal(s.fixMessage(fix))
	if err != nil {
		s.log.Error("encoding fix", "err", err)
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) hello(id string) []byte {
	b := s.mapper.Bounds()
	data, _ := json.Marshal(map[string]any{
		"type":    "hello",
		"session": id,
		"width":   s.mapper.Width,
		"height":  s.mapper.Height,
		"bounds":  [2]point{{b.Min[0], b.Min[1]}, {b.Max[0], b.Max[1]}},
		"nodes":   s.nodes.Len(),
	})
	return data
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	fix, ok := s.locator.LastFix()
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"fix": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fix": s.fixMessage(fix)})
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	type reading struct {
		Beacon   string  `json:"beacon"`
		RSSI     float64 `json:"rssi"`
		Distance float64 `json:"distance_m"`
		Samples  int     `json:"samples"`
		Known    bool    `json:"known"`
	}
	out := []reading{}
	for _, rd := range s.locator.Readings() {
		out = append(out, reading{rd.BeaconID, rd.RSSI, rd.Distance, rd.Samples, rd.Known})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type selectionResponse struct {
	Picks   []int           `json:"picks"`
	Profile routing.Profile `json:"profile"`
	Path    []int           `json:"path"`
}

func (s *Server) selection() selectionResponse {
	sel := s.nav.Selection()
	return selectionResponse{
		Picks:   nonNil(sel.Picks),
		Profile: sel.Profile,
		Path:    nonNil(sel.Route.Nodes),
	}
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.selection())
}

type clickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type clickResponse struct {
	Node  *int   `json:"node"`
	World point  `json:"world"`
	Pixel *point `json:"pixel,omitempty"`
	Picks []int  `json:"picks"`
	Error string `json:"error,omitempty"`
}

// handleClick resolves a click in image pixels to a node and adds it to
// the selection. Clicks far from every node are ignored.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	x, y := s.mapper.ImageToWorld(req.X, req.Y)
	resp := clickResponse{World: point{x, y}}

	node, ok := s.nodes.NearestNode(x, y)
	if !ok {
		s.log.Info("click ignored", "x", x, "y", y, "err", mapping.ErrNoNearbyNode)
		resp.Picks = s.selection().Picks
		resp.Error = mapping.ErrNoNearbyNode.Error()
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Node = &node.ID
	px := s.mapper.WorldToImage(node.X, node.Y)
	resp.Pixel = &point{px.X, px.Y}

	status := http.StatusOK
	if err := s.nav.Pick(node.ID); err != nil {
		status = http.StatusConflict
		resp.Error = err.Error()
	}
	resp.Picks = s.selection().Picks
	s.writeJSON(w, status, resp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Profile string `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := routing.ParseProfile(req.Profile)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.nav.SetProfile(p)
	s.log.Info("profile", "profile", p)
	s.writeJSON(w, http.StatusOK, s.selection())
}

type routeResponse struct {
	Path    []int   `json:"path"`
	Pixels  []point `json:"pixels"`
	LengthM float64 `json:"length_m"`
	Empty   bool    `json:"empty"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	res, err := s.nav.Submit(r.Context())
	switch {
	case errors.Is(err, routing.ErrIncompleteSelection), errors.Is(err, routing.ErrSelectionChanged):
		s.writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, routing.ErrUnavailable):
		s.log.Warn("routing unavailable", "err", err)
		s.writeError(w, http.StatusBadGateway, routing.ErrUnavailable)
		return
	case errors.Is(err, routing.ErrEmptyRoute):
		s.log.Info("no path returned")
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := routeResponse{
		Path:    nonNil(res.Nodes),
		Pixels:  []point{},
		LengthM: s.overlay.Length(res.Nodes),
		Empty:   res.Empty(),
	}
	for _, p := range s.overlay.Pixels(res.Nodes) {
		resp.Pixels = append(resp.Pixels, point{p.X, p.Y})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.nav.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	sel := s.nav.Selection()
	scene := overlay.Scene{Route: sel.Route.Nodes, Picks: sel.Picks}
	if fix, ok := s.locator.LastFix(); ok && !math.IsNaN(fix.X) {
		scene.User = &orb.Point{fix.X, fix.Y}
	}

	var buf bytes.Buffer
	if err := overlay.WritePNG(&buf, s.overlay.Render(s.plan, scene)); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log.Debug("writing overlay", "err", err)
	}
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("writing response", "status", status, "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
