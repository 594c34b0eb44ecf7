package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"nfse-pipeline/internal/middleware"
	"nfse-pipeline/internal/notify"
	"nfse-pipeline/pkg/logger"
)

// EventsHandler streams live sale updates to the browser over SSE, bridging
// the per-user broker channel to the response. There is no replay: events
// published while no client is connected are simply missed.
type EventsHandler struct {
	broker notify.Broker
	logger *logger.Logger
}

func NewEventsHandler(broker notify.Broker, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		broker: broker,
		logger: log,
	}
}

func (h *EventsHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(ctx)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	channel := notify.UpdatesChannel(userID)
	messages, cancel, err := h.broker.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error(ctx, "Failed to subscribe to update channel",
			"channel", channel,
			"error", err,
		)
		return err
	}
	defer cancel()

	h.logger.Info(ctx, "SSE client connected",
		"channel", channel,
	)

	fmt.Fprint(res, ": connected\n\n")
	res.Flush()

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info(ctx, "SSE client disconnected",
				"channel", channel,
			)
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			fmt.Fprintf(res, "event: sale-update\ndata: %s\n\n", msg)
			res.Flush()
		case <-ping.C:
			fmt.Fprint(res, ": ping\n\n")
			res.Flush()
		}
	}
}
