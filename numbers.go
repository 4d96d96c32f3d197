// Personified Numbers
//
// Two players share one screen. Each half-round one player (the describer)
// is shown a random number and describes it without saying it, while the
// other player (the guesser) guesses against a countdown. Roles swap every
// half-round; two half-rounds make a round.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - Every screen connected to a game ID sees the same match
// - The match itself lives in a games/numbers Engine owned by the hub
// - Timer ticks, reveals and round results are pushed to all screens
// - The last turn timer a browser chose is remembered (memory or redis)
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to open the session on another screen, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/personified/games/numbers"
	"github.com/Seednode/personified/prefs"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type   string               `json:"type"`             // "start_match", "reveal", "begin_guessing", "incorrect", "correct", "give_up", "lobby"
	Config *numbers.MatchConfig `json:"config,omitempty"` // start_match
}

// SessionInfoMessage is sent immediately on connect with the lobby defaults
// for this browser and the current match state.
type SessionInfoMessage struct {
	Type   string              `json:"type"` // "session_info"
	GameID string              `json:"game_id"`
	Lobby  numbers.MatchConfig `json:"lobby"`
	State  numbers.Snapshot    `json:"state"`
	Clock  string              `json:"clock"`
}

// StateMessage is broadcast after every command.
type StateMessage struct {
	Type  string           `json:"type"` // "state"
	State numbers.Snapshot `json:"state"`
	Clock string           `json:"clock"`
}

type NumberRevealedMessage struct {
	Type   string `json:"type"` // "number_revealed"
	Number int    `json:"number"`
}

type TickMessage struct {
	Type      string `json:"type"` // "tick"
	Remaining int    `json:"remaining"`
	Clock     string `json:"clock"`
}

type HalfRoundMessage struct {
	Type   string                  `json:"type"` // "half_round_resolved"
	Result numbers.HalfRoundResult `json:"result"`
}

type MatchCompleteMessage struct {
	Type   string              `json:"type"` // "match_complete"
	Result numbers.MatchResult `json:"result"`
}

// ErrorMessage is sent only to the client whose command failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"` // "invalid_configuration", "invalid_transition", "bad_request"
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

var errMissingConfig = errors.New("start_match requires a config")

func errorMessage(err error) ErrorMessage {
	msg := ErrorMessage{
		Type:    "error",
		Code:    "bad_request",
		Message: err.Error(),
	}

	var ce *numbers.ConfigError
	switch {
	case errors.As(err, &ce):
		msg.Code = "invalid_configuration"
		msg.Field = ce.Field
	case errors.Is(err, numbers.ErrInvalidTransition):
		msg.Code = "invalid_transition"
	}

	return msg
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type command struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id     string
	engine *numbers.Engine
	store  prefs.Store
	log    zerolog.Logger

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	commands chan command
	done     chan struct{}
	once     sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, gameID string, store prefs.Store, logger zerolog.Logger, opts ...numbers.Option) *Hub {
	now := time.Now()
	h := &Hub{
		id:         gameID,
		store:      store,
		log:        logger.With().Str("game", gameID).Logger(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	opts = append([]numbers.Option{
		numbers.WithLogger(h.log),
		numbers.WithDefaultTimer(cfg.defaultTimer),
		numbers.WithHooks(numbers.Hooks{
			NumberRevealed: func(n int) {
				h.broadcast(NumberRevealedMessage{Type: "number_revealed", Number: n})
			},
			Tick: func(remaining int) {
				h.broadcast(TickMessage{Type: "tick", Remaining: remaining, Clock: numbers.FormatClock(remaining)})
			},
			HalfRoundResolved: func(r numbers.HalfRoundResult) {
				h.broadcast(HalfRoundMessage{Type: "half_round_resolved", Result: r})
			},
			MatchComplete: func(r numbers.MatchResult) {
				h.broadcast(MatchCompleteMessage{Type: "match_complete", Result: r})
			},
		}),
	}, opts...)

	h.engine = numbers.NewEngine(opts...)

	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = time.Now()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case cmd := <-h.commands:
			h.handleCommand(cmd)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	lobby := h.engine.LobbyDefaults()
	lobby.TurnTimeoutSeconds = numbers.ClampTimer(
		prefs.TimerOrDefault(context.Background(), h.store, c.playerID, lobby.TurnTimeoutSeconds),
	)

	snap := h.engine.Snapshot()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()
	h.clients[c] = true

	h.sendLocked(c, SessionInfoMessage{
		Type:   "session_info",
		GameID: h.id,
		Lobby:  lobby,
		State:  snap,
		Clock:  numbers.FormatClock(snap.TimeRemaining),
	})
}

// handleCommand applies one client command to the engine. The hub lock is
// not held while the engine runs, since engine hooks broadcast through it.
func (h *Hub) handleCommand(cmd command) {
	c := cmd.client
	msg := cmd.msg

	var err error

	switch msg.Type {
	case "start_match":
		if msg.Config == nil {
			err = errMissingConfig
			break
		}

		err = h.engine.StartMatch(*msg.Config)
		if err == nil && h.store != nil && c.playerID != "" {
			seconds := numbers.ClampTimer(msg.Config.TurnTimeoutSeconds)
			if serr := h.store.SetDefaultTimer(context.Background(), c.playerID, seconds); serr != nil {
				h.log.Warn().Err(serr).Msg("could not save timer preference")
			}
		}
	case "reveal":
		_, err = h.engine.Reveal()
	case "begin_guessing":
		err = h.engine.BeginGuessing()
	case "incorrect":
		err = h.engine.RecordIncorrectGuess()
	case "correct":
		err = h.engine.ResolveHalfRound(true)
	case "give_up":
		err = h.engine.ResolveHalfRound(false)
	case "lobby":
		h.engine.ReturnToLobby()
	default:
		return
	}

	if err != nil {
		h.log.Warn().Err(err).Str("command", msg.Type).Msg("command rejected")
	}

	snap := h.engine.Snapshot()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if err != nil {
		h.sendLocked(c, errorMessage(err))
	}

	h.broadcastLocked(StateMessage{
		Type:  "state",
		State: snap,
		Clock: numbers.FormatClock(snap.TimeRemaining),
	})
}

func (h *Hub) broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(msg)
}

// broadcastLocked assumes h.mu is already held.
func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

// sendLocked drops clients that cannot keep up.
func (h *Hub) sendLocked(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// closeAll stops the match and disconnects all clients of this hub.
func (h *Hub) closeAll() {
	h.once.Do(func() {
		close(h.done)
		h.engine.Close()

		h.mu.Lock()
		defer h.mu.Unlock()

		for c := range h.clients {
			close(c.send)
			_ = c.conn.Close()
			delete(h.clients, c)
		}
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "personified_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated match.
type GameManager struct {
	cfg   *Config
	store prefs.Store
	log   zerolog.Logger

	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	stop        chan struct{}
	once        sync.Once
}

func newGameManager(cfg *Config, store prefs.Store, logger zerolog.Logger) *GameManager {
	gm := &GameManager{
		cfg:         cfg,
		store:       store,
		log:         logger,
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		stop:        make(chan struct{}),
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gm.cfg, gameID, gm.store, gm.log)
	gm.hubs[gameID] = hub
	go hub.run()
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reapIdle removes hubs whose last activity is before cutoff.
func (gm *GameManager) reapIdle(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
			reaped++
		}
	}

	return reaped
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := gm.reapIdle(time.Now().Add(-gm.idleTimeout)); n > 0 {
				logf(gm.cfg, "GAMES: Reaped %d idle game(s)", n)
			}
		case <-gm.stop:
			return
		}
	}
}

// Close ends every game and stops the reaper.
func (gm *GameManager) Close() {
	gm.once.Do(func() {
		close(gm.stop)

		gm.mu.Lock()
		defer gm.mu.Unlock()

		for id, hub := range gm.hubs {
			delete(gm.hubs, id)
			hub.closeAll()
		}
	})
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 32),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start_match", "reveal", "begin_guessing", "incorrect", "correct", "give_up", "lobby":
			select {
			case h.commands <- command{client: c, msg: msg}:
			case <-h.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed numbers/index.html
var indexHTML []byte

//go:embed numbers/app.css
var numbersCSS []byte

//go:embed numbers/app.js
var numbersJS []byte

func staticHandler(cfg *Config, contentType string, data []byte, setCookie bool) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		if setCookie {
			_ = getOrSetPlayerID(w, r)
		}

		startTime := time.Now()

		written, err := w.Write(data)
		if err != nil {
			return
		}

		logf(cfg, "SERVE: %s (%s) to %s in %s",
			r.URL.Path,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerNumbersGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerNumbersGame(cfg *Config, path string, mux *httprouter.Router, store prefs.Store) *GameManager {
	gm := newGameManager(cfg, store, newLogger(cfg))

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", staticHandler(cfg, "text/html; charset=utf-8", indexHTML, true))

	mux.GET(cfg.prefix+"/assets/numbers/app.css", staticHandler(cfg, "text/css; charset=utf-8", numbersCSS, false))
	mux.GET(cfg.prefix+"/assets/numbers/app.js", staticHandler(cfg, "application/javascript; charset=utf-8", numbersJS, false))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	return gm
}
