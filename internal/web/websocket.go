// internal/web/websocket.go - Live query subscriptions
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"missionctl/internal/database"
	"missionctl/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WSMessage struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsRequest is what a client sends to register a live query:
// {"subscribe": "listActivities", "args": {"limit": 20}}
type wsRequest struct {
	Subscribe   string          `json:"subscribe,omitempty"`
	Unsubscribe string          `json:"unsubscribe,omitempty"`
	Args        json.RawMessage `json:"args,omitempty"`
}

// liveQuery pairs a query executor with the tables whose writes invalidate
// its result.
type liveQuery struct {
	tables []events.Table
	run    func(ctx context.Context, args json.RawMessage) (any, error)
}

type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server

	mu   sync.Mutex
	subs map[string]json.RawMessage
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade websocket")
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 256),
		server: s,
		subs:   make(map[string]json.RawMessage),
	}

	s.wsMu.Lock()
	s.wsClients[client] = true
	s.wsMu.Unlock()
	s.metrics.RecordWebSocketConnection(1)

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.server.removeClient(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var req wsRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			break
		}

		switch {
		case req.Subscribe != "":
			c.subscribe(req.Subscribe, req.Args)
		case req.Unsubscribe != "":
			c.mu.Lock()
			delete(c.subs, req.Unsubscribe)
			c.mu.Unlock()
		}
	}
}

// subscribe registers a live query and delivers its current result
// immediately. Re-subscribing to the same query replaces its arguments.
func (c *WSClient) subscribe(name string, args json.RawMessage) {
	query, ok := c.server.liveQueries()[name]
	if !ok {
		c.deliver(WSMessage{Type: "error", Query: name, Error: "unknown query"})
		return
	}

	c.mu.Lock()
	c.subs[name] = args
	c.mu.Unlock()

	c.runAndDeliver(name, query, args)
}

func (c *WSClient) runAndDeliver(name string, query liveQuery, args json.RawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := query.run(ctx, args)
	if err != nil {
		c.deliver(WSMessage{Type: "error", Query: name, Error: err.Error()})
		return
	}
	c.deliver(WSMessage{Type: "result", Query: name, Data: result})
}

func (c *WSClient) deliver(message WSMessage) {
	select {
	case c.send <- message:
	default:
		// Slow client; drop the update. The next change will retrigger.
	}
}

func (s *Server) removeClient(client *WSClient) {
	s.wsMu.Lock()
	if s.wsClients[client] {
		delete(s.wsClients, client)
		s.metrics.RecordWebSocketConnection(-1)
	}
	s.wsMu.Unlock()
}

// watchChanges re-runs every live query that reads from a table whose rows
// changed and pushes fresh results to its subscribers.
func (s *Server) watchChanges(ctx context.Context) {
	changes := s.broker.Subscribe(ctx,
		events.TableActivities,
		events.TableTasks,
		events.TableSearchIndex,
		events.TableMemories,
		events.TableHealthChecks,
	)

	for change := range changes {
		queries := s.liveQueries()

		s.wsMu.Lock()
		clients := make([]*WSClient, 0, len(s.wsClients))
		for client := range s.wsClients {
			clients = append(clients, client)
		}
		s.wsMu.Unlock()

		for _, client := range clients {
			client.mu.Lock()
			subs := make(map[string]json.RawMessage, len(client.subs))
			for name, args := range client.subs {
				subs[name] = args
			}
			client.mu.Unlock()

			for name, args := range subs {
				query, ok := queries[name]
				if !ok || !dependsOn(query, change.Table) {
					continue
				}
				client.runAndDeliver(name, query, args)
			}
		}
	}
}

func dependsOn(query liveQuery, table events.Table) bool {
	for _, t := range query.tables {
		if t == table {
			return true
		}
	}
	return false
}

// liveQueries maps query names to executors. Names match the read
// operations of the HTTP API.
func (s *Server) liveQueries() map[string]liveQuery {
	return map[string]liveQuery{
		"listActivities": {
			tables: []events.Table{events.TableActivities},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var params struct {
					Limit  int    `json:"limit"`
					Cursor int64  `json:"cursor"`
					Type   string `json:"type"`
				}
				if err := parseArgs(args, &params); err != nil {
					return nil, err
				}
				return s.store.ListActivities(ctx, database.ActivityQuery{
					Type:   params.Type,
					Cursor: params.Cursor,
					Limit:  params.Limit,
				})
			},
		},
		"listActivitiesPaginated": {
			tables: []events.Table{events.TableActivities},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var params struct {
					Type     string `json:"type"`
					NumItems int    `json:"num_items"`
					Cursor   string `json:"cursor"`
				}
				if err := parseArgs(args, &params); err != nil {
					return nil, err
				}
				return s.store.ListActivitiesPaginated(ctx, params.Type, database.PaginationOpts{
					NumItems: params.NumItems,
					Cursor:   params.Cursor,
				})
			},
		},
		"getActivityStats": {
			tables: []events.Table{events.TableActivities},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				return s.store.GetActivityStats(ctx)
			},
		},
		"listScheduledTasks": {
			tables: []events.Table{events.TableTasks},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				return s.store.ListScheduledTasks(ctx)
			},
		},
		"getWeeklySchedule": {
			tables: []events.Table{events.TableTasks},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var params struct {
					WeekStart int64 `json:"week_start"`
				}
				if err := parseArgs(args, &params); err != nil {
					return nil, err
				}
				return s.store.GetWeeklySchedule(ctx, params.WeekStart)
			},
		},
		"globalSearch": {
			tables: []events.Table{events.TableActivities, events.TableMemories, events.TableSearchIndex},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var params struct {
					Query string `json:"query"`
					Limit int    `json:"limit"`
				}
				if err := parseArgs(args, &params); err != nil {
					return nil, err
				}
				if params.Limit <= 0 || params.Limit > s.config.Search.MaxLimit {
					params.Limit = s.config.Search.DefaultLimit
				}
				return s.store.GlobalSearch(ctx, params.Query, params.Limit)
			},
		},
		"listHealthChecks": {
			tables: []events.Table{events.TableHealthChecks},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var params struct {
					Limit int `json:"limit"`
				}
				if err := parseArgs(args, &params); err != nil {
					return nil, err
				}
				if params.Limit <= 0 {
					params.Limit = s.config.Health.ListLimit
				}
				return s.store.ListHealthChecks(ctx, params.Limit)
			},
		},
		"getHealthStats": {
			tables: []events.Table{events.TableHealthChecks},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				return s.store.GetHealthStats(ctx)
			},
		},
		"getRecentErrors": {
			tables: []events.Table{events.TableHealthChecks},
			run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var params struct {
					Limit int `json:"limit"`
				}
				if err := parseArgs(args, &params); err != nil {
					return nil, err
				}
				if params.Limit <= 0 {
					params.Limit = s.config.Health.RecentErrorsLimit
				}
				return s.store.GetRecentErrors(ctx, params.Limit)
			},
		},
	}
}

func parseArgs(args json.RawMessage, out any) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, out)
}
