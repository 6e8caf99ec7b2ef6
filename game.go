/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Wordreveal game routes
//
// Each browser is a player, identified by a cookie holding a UUID. A
// player owns one hub: a play session plus every websocket the player has
// open, so several tabs or devices show the same progress. Clients send
// commands over the websocket and render the events the session emits.
//
// Routes, relative to the game path:
// - $path            → HTML client
// - $path/ws         → WebSocket for the player's hub
// - $path/variants   → JSON list of available lists
// - $path/qr         → PNG QR code linking to the game
//
// Hubs with no connected clients are closed after --session-timeout of
// inactivity; progress stays on disk.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/wordreveal/catalog"
	"github.com/Seednode/wordreveal/play"
	"github.com/Seednode/wordreveal/reveal"
	"github.com/Seednode/wordreveal/store"
)

const (
	playerCookieName = "wordreveal_id"
	sendBuffer       = 64
	readLimit        = 4096
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	writeWait        = 10 * time.Second
)

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

// Hub fans the events of one player's session out to that player's
// clients.
type Hub struct {
	playerID string
	session  *play.Session
	clients  map[*Client]bool

	register chan *Client
	unreg    chan *Client

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time

	done   <-chan struct{}
	cancel context.CancelFunc
}

func newHub(playerID string) *Hub {
	now := time.Now()
	return &Hub{
		playerID:   playerID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		createdAt:  now,
		lastActive: now,
	}
}

// Notify broadcasts a session event. Clients that cannot keep up are
// dropped.
func (h *Hub) Notify(e reveal.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- e:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) run(ctx context.Context, cfg *Config) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()

			logf(cfg, "GAMES: Client joined player %s (%d connected)", h.playerID, count)

			// The session replays its full view to every client.
			if err := h.session.Post(play.Command{Kind: play.CmdSync}); err != nil {
				return
			}

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			logf(cfg, "GAMES: Client left player %s (%d connected)", h.playerID, count)
		}
	}
}

// handle forwards a client command to the session.
func (h *Hub) handle(cmd play.Command) error {
	h.touch()
	return h.session.Post(cmd)
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

// idleSince reports when the hub was last used, and whether any client is
// still connected.
func (h *Hub) idleSince() (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive, len(h.clients) > 0
}

// closeAll stops the session and disconnects all clients of this hub.
func (h *Hub) closeAll() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// getOrSetPlayerID returns the player cookie, issuing a new UUID when it
// is missing or malformed.
func getOrSetPlayerID(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()

	path := cfg.prefix
	if path == "" {
		path = "/"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     path,
		MaxAge:   int((400 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds one hub per player.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration

	ctx   context.Context
	cfg   *Config
	reg   *catalog.Registry
	store *store.Store
}

func newGameManager(ctx context.Context, cfg *Config, reg *catalog.Registry, st *store.Store) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		ctx:         ctx,
		cfg:         cfg,
		reg:         reg,
		store:       st,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(playerID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[playerID]; ok {
		hub.touch()
		return hub
	}

	hub := newHub(playerID)
	hub.session = play.New(play.Options{
		Registry: gm.reg,
		Store:    gm.store.For(playerID),
		Listener: hub,
		Default:  gm.cfg.defaultList,
		Logf: func(format string, args ...any) {
			logf(gm.cfg, format+" (player %s)", append(args, playerID)...)
		},
	})

	ctx, cancel := context.WithCancel(gm.ctx)
	hub.done = ctx.Done()
	hub.cancel = cancel

	go hub.session.Run(ctx)
	go hub.run(ctx, gm.cfg)

	gm.hubs[playerID] = hub

	logf(gm.cfg, "GAMES: Started session for player %s", playerID)

	return hub
}

func (gm *GameManager) count() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.hubs)
}

// reap closes hubs without clients that have been idle since before
// cutoff.
func (gm *GameManager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		last, connected := hub.idleSince()
		if connected || !last.Before(cutoff) {
			continue
		}

		delete(gm.hubs, id)
		go hub.closeAll()
		reaped++

		logf(gm.cfg, "GAMES: Closed idle session for player %s after %s", id, time.Since(hub.createdAt).Round(time.Second))
	}

	return reaped
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.ctx.Done():
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

func serveWS(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(cfg, w, r)

		hub := gm.getHub(playerID)

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			logf(cfg, "SERVE: WebSocket upgrade for %s failed: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, sendBuffer),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(cfg, hub)
	}
}

func (c *Client) readPump(cfg *Config, h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd play.Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			return
		}

		switch cmd.Kind {
		case play.CmdSubmit, play.CmdInput, play.CmdPrev, play.CmdNext,
			play.CmdReset, play.CmdGiveUp, play.CmdSwitch, play.CmdSync:
			if err := h.handle(cmd); err != nil {
				return
			}
		default:
			logf(cfg, "GAMES: Ignoring %q from player %s", cmd.Kind, c.playerID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// gameURL rebuilds the public URL of the game page, respecting TLS and
// X-Forwarded-Proto.
func gameURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")
}

func qrHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		const qrSize = 320

		png, err := qrcode.Encode(gameURL(r), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func serveVariants(cfg *Config, reg *catalog.Registry, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := json.Marshal(reg.Variants())
		if err != nil {
			http.Error(w, "unable to list variants", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

func serveGamePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		page, err := assets.ReadFile("assets/reveal/index.html")
		if err != nil {
			http.Error(w, "page missing", http.StatusInternalServerError)
			return
		}
		page = []byte(strings.ReplaceAll(string(page), "{{prefix}}", cfg.prefix))

		playerID := getOrSetPlayerID(cfg, w, r)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		written, err := w.Write(page)
		if err != nil {
			errs <- err
			return
		}

		logf(cfg, "SERVE: Game page (%s) to %s (player %s) in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			playerID,
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func registerRevealGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, reg *catalog.Registry, st *store.Store, errs chan<- error) *GameManager {
	gm := newGameManager(ctx, cfg, reg, st)

	mux.GET(cfg.prefix+path, serveGamePage(cfg, errs))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, gm))

	mux.GET(cfg.prefix+path+"/variants", serveVariants(cfg, reg, errs))

	mux.GET(cfg.prefix+path+"/qr", qrHandler(cfg, errs))

	return gm
}
