package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/analytics"
	"github.com/sentience/backend/internal/dashboard"
	"github.com/sentience/backend/internal/metrics"
	"github.com/sentience/backend/internal/review"
	"github.com/sentience/backend/pkg/logger"
)

const evidenceQueryTimeout = 30 * time.Second

// evidenceMessage is one live evidence query sent by the client. Absent
// labels select every label; an empty list selects none.
type evidenceMessage struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Sort      string   `json:"sort"`
	Labels    []string `json:"labels"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Locations []string `json:"locations"`
	Limit     int      `json:"limit"`
}

type evidenceResult struct {
	Type string             `json:"type"`
	ID   string             `json:"id,omitempty"`
	Sort analytics.SortMode `json:"sort"`
	dashboard.EvidencePage
}

type WebSocketHandler struct {
	service *dashboard.Service
}

func NewWebSocketHandler(service *dashboard.Service) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
	}
}

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Evidence stream opened")
	metrics.EvidenceStreams.Inc()

	defer func() {
		metrics.EvidenceStreams.Dec()
		c.Close()
		logger.Info("Evidence stream closed")
	}()

	for {
		var msg evidenceMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read evidence query", zap.Error(err))
			}
			break
		}

		if msg.Type != "query" {
			continue
		}

		res, err := h.search(msg)
		if err != nil {
			if statusFor(err) == fiber.StatusInternalServerError {
				logger.Error("Evidence query failed", zap.Error(err))
			}
			if err := h.sendError(c, msg.ID, err); err != nil {
				break
			}
			continue
		}

		if err := c.WriteJSON(res); err != nil {
			logger.Warn("Failed to write evidence result", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) search(msg evidenceMessage) (*evidenceResult, error) {
	f, err := msg.filter()
	if err != nil {
		return nil, err
	}
	q, err := msg.query()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), evidenceQueryTimeout)
	defer cancel()

	page, err := h.service.Evidence(ctx, f, q, msg.Limit)
	if err != nil {
		return nil, err
	}
	return &evidenceResult{Type: "result", ID: msg.ID, Sort: q.Sort, EvidencePage: page}, nil
}

func (m evidenceMessage) filter() (dashboard.Filter, error) {
	from, err := parseDate(m.From)
	if err != nil {
		return dashboard.Filter{}, fmt.Errorf("%w: from: %v", errInvalidParam, err)
	}
	to, err := parseDate(m.To)
	if err != nil {
		return dashboard.Filter{}, fmt.Errorf("%w: to: %v", errInvalidParam, err)
	}
	return dashboard.Filter{From: from, To: to, Locations: m.Locations}, nil
}

func (m evidenceMessage) query() (analytics.EvidenceQuery, error) {
	sort, err := analytics.ParseSortMode(m.Sort)
	if err != nil {
		return analytics.EvidenceQuery{}, err
	}

	labels := review.Labels
	if m.Labels != nil {
		if labels, err = review.ParseLabels(m.Labels); err != nil {
			return analytics.EvidenceQuery{}, err
		}
	}
	return analytics.EvidenceQuery{Text: m.Text, Sort: sort, Labels: labels}, nil
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, id string, err error) error {
	msg := map[string]interface{}{
		"type":  "error",
		"error": err.Error(),
	}
	if id != "" {
		msg["id"] = id
	}
	return c.WriteJSON(msg)
}
