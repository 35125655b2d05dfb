package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventbooking/bookingcore/internal/cache"
	"github.com/eventbooking/bookingcore/internal/config"
	"github.com/eventbooking/bookingcore/internal/repo/postgres"
	"github.com/eventbooking/bookingcore/internal/utils"
)

type StatsStore interface {
	Overview(ctx context.Context, filter postgres.ReportFilter) (postgres.Overview, error)
	OrganizerStats(ctx context.Context, organizerID string, filter postgres.ReportFilter) (postgres.OrganizerStats, error)
	UserStats(ctx context.Context, userID string) (postgres.UserStats, error)
}

type UserChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// StatsHandler serves aggregated reporting. Results go through Redis with a
// short TTL; stats tolerate staleness, the booking path does not and never
// touches this cache.
type StatsHandler struct {
	repo  StatsStore
	users UserChecker
	cache *cache.RedisCache
}

func NewStatsHandler(repo StatsStore, users UserChecker, c *cache.RedisCache) *StatsHandler {
	return &StatsHandler{repo: repo, users: users, cache: c}
}

// rollups over an unknown id would quietly return zeros, so both per-user
// endpoints resolve the id first.
func (h *StatsHandler) checkUserExists(ctx *gin.Context, cctx context.Context, id string) bool {
	if h.users == nil {
		return true
	}

	ok, err := h.users.Exists(cctx, id)

	if err != nil {
		RespondInternal(ctx)
		return false
	}

	if !ok {
		RespondNotFound(ctx, "User not found")
		return false
	}

	return true
}

func (h *StatsHandler) Overview(ctx *gin.Context) {
	from, to, ok := parseReportRange(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	key := utils.BuildOverviewStatsCacheKey(from, to)

	var cached postgres.Overview

	if h.cacheGet(cctx, key, &cached) {
		ctx.JSON(http.StatusOK, cached)
		return
	}

	out, err := h.repo.Overview(cctx, postgres.ReportFilter{From: from, To: to})

	if err != nil {
		RespondInternal(ctx)
		return
	}

	h.cacheSet(cctx, key, out)

	ctx.JSON(http.StatusOK, out)
}

func (h *StatsHandler) Organizer(ctx *gin.Context) {
	organizerID := ctx.Param("id")

	if !utils.IsUUID(organizerID) {
		RespondBadRequest(ctx, "organizer id must be a valid UUID", nil)
		return
	}

	from, to, ok := parseReportRange(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if !h.checkUserExists(ctx, cctx, organizerID) {
		return
	}

	key := utils.BuildOrganizerStatsCacheKey(organizerID, from, to)

	var cached postgres.OrganizerStats

	if h.cacheGet(cctx, key, &cached) {
		ctx.JSON(http.StatusOK, cached)
		return
	}

	out, err := h.repo.OrganizerStats(cctx, organizerID, postgres.ReportFilter{From: from, To: to})

	if err != nil {
		RespondInternal(ctx)
		return
	}

	h.cacheSet(cctx, key, out)

	ctx.JSON(http.StatusOK, out)
}

func (h *StatsHandler) User(ctx *gin.Context) {
	userID := ctx.Param("id")

	if !utils.IsUUID(userID) {
		RespondBadRequest(ctx, "user id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if !h.checkUserExists(ctx, cctx, userID) {
		return
	}

	key := utils.BuildUserStatsCacheKey(userID)

	var cached postgres.UserStats

	if h.cacheGet(cctx, key, &cached) {
		ctx.JSON(http.StatusOK, cached)
		return
	}

	out, err := h.repo.UserStats(cctx, userID)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	h.cacheSet(cctx, key, out)

	ctx.JSON(http.StatusOK, out)
}

// cache reads and writes are best effort; a dead Redis degrades stats to
// direct queries instead of failing the request.
func (h *StatsHandler) cacheGet(ctx context.Context, key string, out any) bool {
	if h.cache == nil {
		return false
	}

	// misses and Redis failures look the same here; the repo query is the fallback
	if err := h.cache.GetJSON(ctx, key, out); err != nil {
		return false
	}

	return true
}

func (h *StatsHandler) cacheSet(ctx context.Context, key string, val any) {
	if h.cache == nil {
		return
	}

	_ = h.cache.SetJSON(ctx, key, val)
}

func parseReportRange(ctx *gin.Context) (from, to *time.Time, ok bool) {
	if raw := ctx.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "from must be RFC3339", nil)
			return nil, nil, false
		}
		from = &t
	}

	if raw := ctx.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondBadRequest(ctx, "to must be RFC3339", nil)
			return nil, nil, false
		}
		to = &t
	}

	if from != nil && to != nil && to.Before(*from) {
		RespondBadRequest(ctx, "to must not be before from", nil)
		return nil, nil, false
	}

	return from, to, true
}
