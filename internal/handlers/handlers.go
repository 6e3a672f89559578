// Package handlers implements the HTTP handlers of the clique query API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/clique-discord/clique/internal/engine"
	"github.com/clique-discord/clique/internal/metrics"
	"github.com/clique-discord/clique/internal/store"
	"github.com/clique-discord/clique/pkg/api/clique"
	"github.com/clique-discord/clique/pkg/logging"
	"github.com/clique-discord/clique/pkg/middleware"
	"github.com/clique-discord/clique/pkg/models"
)

// Store is the narrow slice of the storage layer the API reads.
type Store interface {
	engine.MessageSource
	GetUser(ctx context.Context, id int64) (models.User, error)
}

var (
	db             Store
	logger         logging.Logger
	serviceMetrics *metrics.Query
)

// Init initializes the handlers package with its dependencies.
func Init(s Store, log logging.Logger, m *metrics.Query) {
	db = s
	logger = log
	serviceMetrics = m
}

// GetPoints computes interaction points per period. granularity is
// required; guild, after and before optionally narrow the scope. Both
// time bounds are exclusive.
func GetPoints(c *gin.Context) {
	start := time.Now()
	defer func() {
		if serviceMetrics != nil {
			serviceMetrics.QueryDuration.WithLabelValues("points").Observe(time.Since(start).Seconds())
		}
	}()

	granularity, err := engine.ParseGranularity(c.Query("granularity"))
	if err != nil {
		countPoints("invalid")
		respond(c, http.StatusBadRequest, clique.ErrorResponse{
			Error: "Invalid granularity, see /api/granularities for the supported values",
			Code:  clique.CodeInvalidGranularity,
		})
		return
	}

	query := engine.Query{Granularity: granularity}

	if raw := c.Query("guild"); raw != "" {
		guild, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			countPoints("invalid")
			respond(c, http.StatusBadRequest, clique.ErrorResponse{
				Error: "Invalid guild ID",
				Code:  clique.CodeInvalidGuild,
			})
			return
		}
		query.Guild = &guild
	}

	if raw := c.Query("after"); raw != "" {
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			countPoints("invalid")
			respond(c, http.StatusBadRequest, clique.ErrorResponse{
				Error: "Invalid after bound, expected an RFC 3339 timestamp",
				Code:  clique.CodeInvalidTimeBound,
			})
			return
		}
		query.After = &after
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			countPoints("invalid")
			respond(c, http.StatusBadRequest, clique.ErrorResponse{
				Error: "Invalid before bound, expected an RFC 3339 timestamp",
				Code:  clique.CodeInvalidTimeBound,
			})
			return
		}
		query.Before = &before
	}

	result, err := engine.ComputePoints(c.Request.Context(), db, query)
	if err != nil {
		countPoints("error")
		middleware.GetContextLogger(c, logger).WithError(err).WithFields(logging.Fields{
			"granularity": string(granularity),
		}).Error("Failed to compute points")
		respond(c, http.StatusInternalServerError, clique.ErrorResponse{
			Error: "Failed to compute points",
			Code:  clique.CodeDatabaseError,
		})
		return
	}

	countPoints("ok")
	respond(c, http.StatusOK, result)
}

// GetUser returns the stored name for a user ID.
func GetUser(c *gin.Context) {
	start := time.Now()
	defer func() {
		if serviceMetrics != nil {
			serviceMetrics.QueryDuration.WithLabelValues("user").Observe(time.Since(start).Seconds())
		}
	}()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		countUsers("invalid")
		respond(c, http.StatusBadRequest, clique.ErrorResponse{
			Error: "Invalid user ID",
			Code:  clique.CodeInvalidUserID,
		})
		return
	}

	user, err := db.GetUser(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		countUsers("missing")
		respond(c, http.StatusNotFound, clique.ErrorResponse{
			Error: "User not found",
			Code:  clique.CodeUserNotFound,
		})
		return
	}
	if err != nil {
		countUsers("error")
		middleware.GetContextLogger(c, logger).WithError(err).WithFields(logging.Fields{
			"user_id": id,
		}).Error("Failed to fetch user")
		respond(c, http.StatusInternalServerError, clique.ErrorResponse{
			Error: "Failed to fetch user",
			Code:  clique.CodeDatabaseError,
		})
		return
	}

	countUsers("ok")
	respond(c, http.StatusOK, user)
}

// GetGranularities lists the granularity tokens GetPoints accepts.
func GetGranularities(c *gin.Context) {
	respond(c, http.StatusOK, clique.GranularitiesResponse{Granularities: engine.Granularities()})
}

// respond writes the object as msgpack when the client asked for it via
// the Accept header, JSON otherwise.
func respond(c *gin.Context, status int, obj interface{}) {
	if strings.Contains(c.GetHeader("Accept"), "application/msgpack") {
		c.Render(status, render.MsgPack{Data: obj})
		return
	}
	c.JSON(status, obj)
}

func countPoints(status string) {
	if serviceMetrics != nil {
		serviceMetrics.PointsQueries.WithLabelValues(status).Inc()
	}
}

func countUsers(status string) {
	if serviceMetrics != nil {
		serviceMetrics.UserLookups.WithLabelValues(status).Inc()
	}
}
