package server

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// stream upgrades to a websocket and answers every binary image frame with a
// detection response or an error envelope.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.cfg.MaxUploadBytes)
	ctx := c.Request.Context()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("websocket read ended")
			}
			return
		}

		var reply any
		if msgType != websocket.BinaryMessage {
			reply = ErrorResponse{Error: "expected a binary frame holding an encoded image"}
		} else if resp, err := s.DetectBytes(ctx, data); err != nil {
			reply = s.errorBody(err, statusFor(err))
		} else {
			reply = resp
		}

		if err := conn.WriteJSON(reply); err != nil {
			s.log.WithError(errors.WithStack(err)).Warn("websocket write failed")
			return
		}
	}
}
