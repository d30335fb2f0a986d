package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/dialog"
	"github.com/brettbedarf/webtree/internal/util"
	"github.com/brettbedarf/webtree/seed"
	"github.com/brettbedarf/webtree/tree"
)

// treeResponse is the body returned by every endpoint that yields a tree
type treeResponse struct {
	ID      string       `json:"id"`
	Version uint64       `json:"version"`
	Tree    webtree.Tree `json:"tree"`
}

// entryRequest is the body of add and rename requests. For a rename, Name is
// the new name and Type is the kind of the entry being renamed.
type entryRequest struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
	Type   string `json:"type" binding:"required"`
}

func newTreeResponse(sess *Session, t webtree.Tree, version uint64) treeResponse {
	return treeResponse{ID: sess.ID, Version: version, Tree: t}
}

// registerRoutes wires the API onto r
func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	api.GET("/dialog/defaults", s.getDialogDefaults)

	sessions := api.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.GET("/:id/tree", s.withSession(s.getTree))
	sessions.GET("/:id/presence", s.withSession(s.getPresence))
	sessions.POST("/:id/entries", s.withSession(s.addEntry))
	sessions.PATCH("/:id/entries", s.withSession(s.renameEntry))
	sessions.DELETE("/:id/entries", s.withSession(s.removeEntry))
	sessions.GET("/:id/export", s.withSession(s.exportTree))
	sessions.GET("/:id/ws", s.withSession(s.subscribe))

	if s.cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(s.metrics.handler()))
	}
}

type sessionHandler func(c *gin.Context, sess *Session)

// withSession resolves the :id param to a live session before calling h
func (s *Server) withSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.sessions.Get(c.Param("id"))
		if err != nil {
			s.writeError(c, "", err)
			return
		}
		h(c, sess)
	}
}

// writeError maps an error onto a status code and a {"message": ...} body
func (s *Server) writeError(c *gin.Context, op string, err error) {
	var verr *dialog.ValidationError
	status := http.StatusInternalServerError
	body := gin.H{"message": err.Error()}
	result := resultError

	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		reason := rejectionReason(verr.Err)
		body["reason"] = reason
		s.metrics.rejections.WithLabelValues(reason).Inc()
		result = resultRejected
	case errors.Is(err, webtree.ErrInvalidName):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, tree.ErrMalformedPath):
		status = http.StatusConflict
	case errors.Is(err, webtree.ErrUnknownKind):
		status = http.StatusBadRequest
	case errors.Is(err, errSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errTooManySessions):
		status = http.StatusServiceUnavailable
	}

	if op != "" {
		s.metrics.operations.WithLabelValues(op, result).Inc()
	}
	c.AbortWithStatusJSON(status, body)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, dialog.ErrEmptyName):
		return "empty"
	case errors.Is(err, dialog.ErrUnchangedName):
		return "unchanged"
	case errors.Is(err, dialog.ErrDuplicateName):
		return "duplicate"
	case errors.Is(err, dialog.ErrInvalidName):
		return "invalid"
	default:
		return "other"
	}
}

func (s *Server) getDialogDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.DialogNames)
}

func (s *Server) createSession(c *gin.Context) {
	sess, err := s.sessions.Create(s.seed)
	if err != nil {
		s.writeError(c, "create_session", err)
		return
	}
	s.watch(sess)
	s.metrics.sessions.Set(float64(s.sessions.Len()))
	s.metrics.operations.WithLabelValues("create_session", resultOK).Inc()
	t, version := sess.Store.Current()
	c.JSON(http.StatusCreated, newTreeResponse(sess, t, version))
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.sessions.Delete(c.Param("id")) {
		s.writeError(c, "delete_session", errSessionNotFound)
		return
	}
	s.metrics.sessions.Set(float64(s.sessions.Len()))
	s.metrics.operations.WithLabelValues("delete_session", resultOK).Inc()
	c.Status(http.StatusNoContent)
}

// watch pushes every committed tree of sess to its websocket subscribers
func (s *Server) watch(sess *Session) {
	logger := util.GetLogger("Server.watch")
	sess.Store.OnCommit(func(version uint64, t webtree.Tree) {
		msg, err := json.Marshal(newTreeResponse(sess, t, version))
		if err != nil {
			logger.Error().Err(err).Str("session", sess.ID).Msg("Failed to encode snapshot")
			return
		}
		sess.hub.broadcast(msg)
	})
}

func (s *Server) getTree(c *gin.Context, sess *Session) {
	t, version := sess.Store.Current()
	c.JSON(http.StatusOK, newTreeResponse(sess, t, version))
}

// exportTree returns the session tree in seed form so it can be loaded again
func (s *Server) exportTree(c *gin.Context, sess *Session) {
	dtos := seed.Encode(sess.Store.Snapshot())
	switch format := seed.Format(c.DefaultQuery("format", string(seed.JSON))); format {
	case seed.JSON:
		c.JSON(http.StatusOK, dtos)
	case seed.YAML:
		c.YAML(http.StatusOK, dtos)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "unknown export format: " + string(format)})
	}
}

func (s *Server) getPresence(c *gin.Context, sess *Session) {
	kind, err := webtree.ParseKind(c.Query("type"))
	if err != nil {
		s.writeError(c, "", err)
		return
	}
	isRename, _ := strconv.ParseBool(c.DefaultQuery("rename", "false"))
	present := sess.Store.CheckPresence(c.Query("prefix"), c.Query("name"), kind, isRename)
	c.JSON(http.StatusOK, gin.H{"present": present})
}

// bindEntry decodes an add/rename body, writing the error response on failure
func (s *Server) bindEntry(c *gin.Context, op string) (entryRequest, webtree.Kind, bool) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.operations.WithLabelValues(op, resultError).Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return req, "", false
	}
	kind, err := webtree.ParseKind(req.Type)
	if err != nil {
		s.writeError(c, op, err)
		return req, "", false
	}
	return req, kind, true
}

func (s *Server) addEntry(c *gin.Context, sess *Session) {
	const op = "add"
	req, kind, ok := s.bindEntry(c, op)
	if !ok {
		return
	}
	if err := dialog.ValidateAdd(sess.Store, req.Prefix, req.Name, kind); err != nil {
		s.writeError(c, op, err)
		return
	}
	commit, err := sess.Store.AddEntry(req.Prefix, req.Name, kind)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	s.metrics.operations.WithLabelValues(op, resultOK).Inc()
	c.JSON(http.StatusCreated, newTreeResponse(sess, commit.Tree, commit.Version))
}

func (s *Server) renameEntry(c *gin.Context, sess *Session) {
	const op = "rename"
	req, kind, ok := s.bindEntry(c, op)
	if !ok {
		return
	}
	if err := dialog.ValidateRename(sess.Store, req.Prefix, req.Name, kind); err != nil {
		s.writeError(c, op, err)
		return
	}
	commit, err := sess.Store.RenameEntry(req.Prefix, kind, req.Name)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	s.metrics.operations.WithLabelValues(op, resultOK).Inc()
	c.JSON(http.StatusOK, newTreeResponse(sess, commit.Tree, commit.Version))
}

func (s *Server) removeEntry(c *gin.Context, sess *Session) {
	const op = "remove"
	var kind webtree.Kind
	if typ := c.Query("type"); typ != "" {
		var err error
		if kind, err = webtree.ParseKind(typ); err != nil {
			s.writeError(c, op, err)
			return
		}
	}
	commit, err := sess.Store.RemoveEntry(c.Query("prefix"), kind)
	if err != nil {
		s.writeError(c, op, err)
		return
	}
	s.metrics.operations.WithLabelValues(op, resultOK).Inc()
	c.JSON(http.StatusOK, newTreeResponse(sess, commit.Tree, commit.Version))
}

// subscribe upgrades to a websocket that first receives the current tree and
// then every committed tree of the session
func (s *Server) subscribe(c *gin.Context, sess *Session) {
	logger := util.GetLogger("Server.subscribe")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		logger.Debug().Err(err).Str("session", sess.ID).Msg("Websocket upgrade failed")
		return
	}
	sub, err := sess.hub.add(conn, func() ([]byte, error) {
		t, version := sess.Store.Current()
		return json.Marshal(newTreeResponse(sess, t, version))
	})
	if err != nil {
		logger.Error().Err(err).Str("session", sess.ID).Msg("Failed to encode snapshot")
		conn.Close()
		return
	}
	defer sess.hub.remove(sub)
	go sub.writePump()

	logger.Debug().Str("session", sess.ID).Str("remote", conn.RemoteAddr().String()).Msg("Subscriber connected")
	// the UI never sends anything; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Str("session", sess.ID).Msg("Subscriber disconnected")
			}
			return
		}
		sess.touch(s.sessions.now())
	}
}
