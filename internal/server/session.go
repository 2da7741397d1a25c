package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tilegen/internal/logger"
	"github.com/lawnchairsociety/tilegen/internal/wfc"
)

const writeTimeout = 10 * time.Second

// errBadRequest marks requests rejected before generation starts. They
// count towards the client's lockout.
var errBadRequest = errors.New("bad request")

// runSession reads requests until the client disconnects or the server
// shuts down.
func (s *Server) runSession(conn *websocket.Conn, clientIP string) {
	log := logger.With("client_ip", clientIP)
	log.Info("Session opened")
	defer log.Info("Session closed")

	if s.cfg.WebSocket.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Session read failed", "error", err)
			}
			return
		}

		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}

		if locked, remaining := s.failures.IsLocked(clientIP); locked {
			err := fmt.Errorf("too many failed requests, retry in %s", remaining.Round(time.Second))
			if !s.send(conn, errorResponse("", err)) {
				return
			}
			continue
		}

		resp, err := s.handleMessage(data)
		if err != nil {
			log.Debug("Request failed", "id", resp.ID, "error", err)
			if errors.Is(err, errBadRequest) {
				if locked, d := s.failures.RecordFailure(clientIP); locked {
					log.Warn("Client locked out after failed requests", "lockout", d.String())
				}
			}
		} else {
			s.failures.RecordSuccess(clientIP)
		}
		if !s.send(conn, resp) {
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, resp Response) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(resp); err != nil {
		logger.Debug("Session write failed", "error", err)
		return false
	}
	return true
}

// handleMessage answers one request frame. The error, if any, is what the
// error response reports.
func (s *Server) handleMessage(data []byte) (Response, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		err = fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
		return errorResponse("", err), err
	}

	switch req.Type {
	case TypeGenerate:
		m, mapID, err := s.generate(s.ctx, req)
		if err != nil {
			return errorResponse(req.ID, err), err
		}
		return mapResponse(req.ID, m, mapID), nil
	case TypeRulesets:
		return Response{Type: TypeRulesets, ID: req.ID, Rulesets: s.registry.Names()}, nil
	default:
		err := fmt.Errorf("%w: unknown message type %q", errBadRequest, req.Type)
		return errorResponse(req.ID, err), err
	}
}

// generate runs one request to completion. It returns the map and, when the
// map was stored, its database id.
func (s *Server) generate(ctx context.Context, req Request) (*wfc.GeneratedMap, int64, error) {
	width, height := req.Width, req.Height
	if width == 0 {
		width = s.gen.Width
	}
	if height == 0 {
		height = s.gen.Height
	}
	seed := s.gen.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	name := req.Ruleset
	if name == "" {
		name = s.gen.Ruleset
	}

	if width < 0 || height < 0 {
		return nil, 0, fmt.Errorf("%w: %w: %dx%d", errBadRequest, wfc.ErrInvalidSize, width, height)
	}
	if limit := s.cfg.MaxCells; limit > 0 && (width > limit || height > limit || width*height > limit) {
		return nil, 0, fmt.Errorf("%w: %dx%d exceeds %d cells", errBadRequest, width, height, limit)
	}

	tileset, ok := s.registry.Get(name)
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown ruleset %q", errBadRequest, name)
	}

	mc := wfc.DefaultMapConfig(width, height, seed)
	mc.MaxAttempts = s.gen.MaxAttempts
	mc.MaxSteps = s.gen.MaxSteps

	if timeout := s.gen.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	store := s.mapStore()
	gen := wfc.NewGenerator(mc, tileset)
	if store != nil {
		gen.OnConflict = func(report wfc.ConflictReport) {
			if _, err := store.RecordConflict(report); err != nil {
				logger.Error("Failed to record conflict", "ruleset", report.Ruleset, "error", err)
			}
		}
	}

	m, err := gen.Generate(ctx)
	if err != nil {
		return nil, 0, err
	}

	var mapID int64
	if s.cfg.SaveMaps && store != nil {
		id, created, err := store.SaveMap(m)
		if err != nil {
			logger.Error("Failed to save map", "ruleset", m.Ruleset, "seed", m.Seed, "error", err)
		} else {
			mapID = id
			logger.Debug("Map stored", "map_id", id, "created", created)
		}
	}

	return m, mapID, nil
}
