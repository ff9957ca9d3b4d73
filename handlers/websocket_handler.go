package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-live/live"
	"github.com/Dosada05/tournament-live/middleware"
	"github.com/Dosada05/tournament-live/models"
	"github.com/Dosada05/tournament-live/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	commandTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяется CORS-слоем роутера
	CheckOrigin: func(r *http.Request) bool { return true },
}

type PrincipalResolver interface {
	Resolve(token string) (models.Principal, error)
}

type WebSocketHandler struct {
	liveService services.LiveMatchService
	resolver    PrincipalResolver
	sendBuffer  int
	logger      *slog.Logger
}

func NewWebSocketHandler(ls services.LiveMatchService, resolver PrincipalResolver, sendBuffer int, logger *slog.Logger) *WebSocketHandler {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		liveService: ls,
		resolver:    resolver,
		sendBuffer:  sendBuffer,
		logger:      logger,
	}
}

// ServeWs godoc
// @Summary Websocket живых матчей
// @Tags live
// @Description Токен передаётся в заголовке Authorization: Bearer или в параметре token.
// @Param token query string false "JWT"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Router /ws/live [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		errorResponse(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	principal, err := h.resolver.Resolve(token)
	if err != nil {
		h.logger.Debug("Websocket token rejected", slog.Any("error", err))
		errorResponse(w, r, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту
		h.logger.Warn("Failed to upgrade websocket connection", slog.Any("error", err))
		return
	}

	c := &liveClient{
		id:          uuid.NewString(),
		conn:        conn,
		send:        make(chan []byte, h.sendBuffer),
		done:        make(chan struct{}),
		principal:   principal,
		service:     h.liveService,
		matches:     make(map[int]func()),
		tournaments: make(map[int]func()),
		entry:       make(map[int]bool),
	}
	c.logger = h.logger.With(slog.String("connection_id", c.id), slog.Int("principal_id", principal.ID))
	c.logger.Info("Websocket connection opened", slog.String("role", string(principal.Role)))

	go c.writePump()
	go c.readPump()
}

// liveClient - одно websocket-соединение. Команды обрабатываются по очереди в readPump.
type liveClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	principal models.Principal
	service   services.LiveMatchService
	logger    *slog.Logger

	// только readPump
	matches     map[int]func()
	tournaments map[int]func()
	entry       map[int]bool

	closeOnce sync.Once
}

func (c *liveClient) readPump() {
	defer func() {
		c.disconnect()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		var cmd models.LiveCommand
		if err := json.Unmarshal(message, &cmd); err != nil || cmd.Type == "" {
			c.reply(models.MsgError, "", ErrorPayload{Code: CodeBadRequest, Message: "message must be a JSON object with a type"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		c.dispatch(ctx, cmd)
		cancel()
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// одно сообщение - один фрейм: клиент разбирает каждый фрейм как JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Websocket write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect отписывает соединение от всех комнат и только после этого закрывает send.
func (c *liveClient) disconnect() {
	c.closeOnce.Do(func() {
		for id, unsubscribe := range c.matches {
			unsubscribe()
			delete(c.matches, id)
		}
		for id, unsubscribe := range c.tournaments {
			unsubscribe()
			delete(c.tournaments, id)
		}
		if len(c.entry) > 0 {
			ids := make([]int, 0, len(c.entry))
			for id := range c.entry {
				ids = append(ids, id)
			}
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			c.service.ConnectionLost(ctx, c.principal.ID, ids)
			cancel()
		}
		close(c.send)
		c.logger.Info("Websocket connection closed")
	})
}

func (c *liveClient) reply(msgType, requestID string, payload interface{}) {
	raw, err := json.Marshal(models.LiveMessage{Type: msgType, RequestID: requestID, Payload: payload})
	if err != nil {
		c.logger.Error("Error marshalling reply", slog.String("type", msgType), slog.Any("error", err))
		return
	}
	select {
	case c.send <- raw:
	case <-c.done:
	}
}

func (c *liveClient) replyError(requestID string, err error) {
	payload, status := classifyError(err)
	if status == http.StatusInternalServerError {
		c.logger.Error("Live command failed", slog.String("request_id", requestID), slog.Any("error", err))
	}
	c.reply(models.MsgError, requestID, payload)
}

type matchRef struct {
	MatchID int `json:"match_id"`
}

type tournamentRef struct {
	TournamentID int `json:"tournament_id"`
}

type sessionRef struct {
	SessionID string `json:"session_id"`
}

type timerCommand struct {
	MatchID int                `json:"match_id"`
	Action  models.TimerAction `json:"action"`
}

type statusCommand struct {
	MatchID int                `json:"match_id"`
	Status  models.MatchStatus `json:"status"`
}

type syncCommand struct {
	MatchID       int  `json:"match_id"`
	SinceSequence *int `json:"since_sequence,omitempty"`
}

// SubmittedPayload - ответ на submit-event-entry.
type SubmittedPayload struct {
	Success   bool                  `json:"success"`
	EventID   string                `json:"event_id,omitempty"`
	Sequence  *int                  `json:"sequence,omitempty"`
	RequestID string                `json:"substitution_request_id,omitempty"`
	Message   string                `json:"message"`
	Result    live.ValidationResult `json:"result"`
}

func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", live.ErrMalformedRequest)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", live.ErrMalformedRequest, err)
	}
	return nil
}

func (c *liveClient) dispatch(ctx context.Context, cmd models.LiveCommand) {
	var err error
	switch cmd.Type {
	case models.MsgJoinMatch:
		err = c.joinMatch(ctx, cmd)
	case models.MsgLeaveMatch:
		var ref matchRef
		if err = decodePayload(cmd.Payload, &ref); err == nil {
			if unsubscribe, ok := c.matches[ref.MatchID]; ok {
				unsubscribe()
				delete(c.matches, ref.MatchID)
			}
			c.reply(models.MsgMatchLeft, cmd.RequestID, ref)
		}
	case models.MsgJoinTournament:
		var ref tournamentRef
		if err = decodePayload(cmd.Payload, &ref); err == nil {
			if _, ok := c.tournaments[ref.TournamentID]; !ok {
				var unsubscribe func()
				if unsubscribe, err = c.service.JoinTournament(ctx, c.id, ref.TournamentID, c.send); err == nil {
					c.tournaments[ref.TournamentID] = unsubscribe
				}
			}
			if err == nil {
				c.reply(models.MsgTournamentJoined, cmd.RequestID, ref)
			}
		}
	case models.MsgStartEventEntry:
		var ref matchRef
		if err = decodePayload(cmd.Payload, &ref); err == nil {
			var session models.EventEntrySession
			if session, err = c.service.StartEventEntry(ctx, c.principal, ref.MatchID); err == nil {
				c.entry[ref.MatchID] = true
				c.reply(models.MsgEventEntryStarted, cmd.RequestID, session)
			}
		}
	case models.MsgEndEventEntry:
		var ref sessionRef
		if err = decodePayload(cmd.Payload, &ref); err == nil {
			if err = c.service.EndEventEntry(ctx, c.principal, ref.SessionID); err == nil {
				c.reply(models.MsgEventEntryEnded, cmd.RequestID, ref)
			}
		}
	case models.MsgValidateEventEntry:
		var in models.MatchEventInput
		if err = decodePayload(cmd.Payload, &in); err == nil {
			var res live.ValidationResult
			if res, err = c.service.ValidateEvent(ctx, c.principal, in); err == nil {
				c.reply(models.MsgEventEntryValidation, cmd.RequestID, res)
			}
		}
	case models.MsgSubmitEventEntry:
		err = c.submit(ctx, cmd)
	case models.MsgControlTimer:
		var tc timerCommand
		if err = decodePayload(cmd.Payload, &tc); err == nil {
			var view models.TimerView
			if view, err = c.service.ControlTimer(ctx, c.principal, tc.MatchID, tc.Action); err == nil {
				c.reply(models.MsgTimerControlled, cmd.RequestID, view)
			}
		}
	case models.MsgChangeStatus:
		var sc statusCommand
		if err = decodePayload(cmd.Payload, &sc); err == nil {
			var res live.SubmitResult
			if res, err = c.service.ChangeStatus(ctx, c.principal, sc.MatchID, sc.Status); err == nil {
				c.reply(models.MsgStatusChanged, cmd.RequestID, res)
			} else {
				err = c.validationReply(models.MsgStatusChanged, cmd.RequestID, err)
			}
		}
	case models.MsgSyncMatch:
		var sc syncCommand
		if err = decodePayload(cmd.Payload, &sc); err == nil {
			since := -1
			if sc.SinceSequence != nil {
				since = *sc.SinceSequence
			}
			var out models.MatchSyncPayload
			if out, err = c.service.Sync(ctx, sc.MatchID, since); err == nil {
				c.reply(models.MsgMatchSync, cmd.RequestID, out)
			}
		}
	default:
		err = fmt.Errorf("%w: unknown message type %q", live.ErrMalformedRequest, cmd.Type)
	}

	if err != nil {
		c.replyError(cmd.RequestID, err)
	}
}

func (c *liveClient) joinMatch(ctx context.Context, cmd models.LiveCommand) error {
	var req services.JoinMatchRequest
	if err := decodePayload(cmd.Payload, &req); err != nil {
		return err
	}
	// повторный join заменяет подписку: клиент получит свежее состояние
	if unsubscribe, ok := c.matches[req.MatchID]; ok {
		unsubscribe()
		delete(c.matches, req.MatchID)
	}
	unsubscribe, err := c.service.JoinMatch(ctx, c.principal, c.id, req, c.send)
	if err != nil {
		return err
	}
	c.matches[req.MatchID] = unsubscribe
	c.reply(models.MsgMatchJoined, cmd.RequestID, matchRef{MatchID: req.MatchID})
	return nil
}

func (c *liveClient) submit(ctx context.Context, cmd models.LiveCommand) error {
	var in models.MatchEventInput
	if err := decodePayload(cmd.Payload, &in); err != nil {
		return err
	}
	res, err := c.service.SubmitEvent(ctx, c.principal, in)
	if err != nil {
		return c.validationReply(models.MsgEventEntrySubmitted, cmd.RequestID, err)
	}

	out := SubmittedPayload{Success: true, Result: res.Result, RequestID: res.RequestID}
	switch {
	case res.Event != nil:
		seq := res.Event.Sequence
		out.EventID, out.Sequence = res.Event.ID, &seq
		out.Message = "event applied"
	case res.Result.Pending:
		out.Message = "substitution request waits for referee confirmation"
	default:
		out.Message = "no change"
	}
	c.reply(models.MsgEventEntrySubmitted, cmd.RequestID, out)
	return nil
}

// validationReply отвечает на отклонённое событие обычным ответом команды с
// success=false; остальные ошибки возвращаются вызывающему.
func (c *liveClient) validationReply(msgType, requestID string, err error) error {
	var verr *live.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	msg := verr.Error()
	c.reply(msgType, requestID, SubmittedPayload{Success: false, Message: msg, Result: verr.Result})
	return nil
}
