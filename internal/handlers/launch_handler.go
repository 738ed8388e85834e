package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"token-launcher/internal/models"
	"token-launcher/internal/repository"
	"token-launcher/internal/utils"
)

// LaunchHandler serves stored launch runs.
type LaunchHandler struct {
	repo  repository.LaunchRunRepository
	chain *utils.ChainInfo
	log   logrus.FieldLogger
}

// NewLaunchHandler creates a handler. chain may be nil, which omits explorer links.
func NewLaunchHandler(repo repository.LaunchRunRepository, chain *utils.ChainInfo, logger logrus.FieldLogger) *LaunchHandler {
	return &LaunchHandler{repo: repo, chain: chain, log: logger.WithField("component", "launch_handler")}
}

// LaunchResponse is a run plus explorer links for its addresses and transactions.
type LaunchResponse struct {
	*models.LaunchRun
	Links map[string]string `json:"links,omitempty"`
}

func (h *LaunchHandler) present(run *models.LaunchRun) LaunchResponse {
	resp := LaunchResponse{LaunchRun: run}
	if h.chain == nil || h.chain.ExplorerURL == "" {
		return resp
	}
	links := make(map[string]string)
	add := func(key, value string, link func(string) string) {
		if value != "" {
			links[key] = link(value)
		}
	}
	add("token", run.TokenAddress, h.chain.AddressURL)
	add("pair", run.PairAddress, h.chain.AddressURL)
	add("deploy_tx", run.TokenTxHash, h.chain.TxURL)
	add("burn_tx", run.BurnTxHash, h.chain.TxURL)
	add("pair_tx", run.PairTxHash, h.chain.TxURL)
	add("liquidity_tx", run.LiquidityTxHash, h.chain.TxURL)
	add("failed_tx", run.FailedTxHash, h.chain.TxURL)
	if len(links) > 0 {
		resp.Links = links
	}
	return resp
}

// ListLaunchesHandler handles GET /api/launches
// Optional ?status= filters by run status (oldest first, unpaginated).
func (h *LaunchHandler) ListLaunchesHandler(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		switch s := models.LaunchRunStatus(status); s {
		case models.LaunchRunStatusPending, models.LaunchRunStatusRunning,
			models.LaunchRunStatusFailed, models.LaunchRunStatusCompleted:
			runs, err := h.repo.FindByStatus(c.Request.Context(), s)
			if err != nil {
				h.log.WithError(err).Error("Failed to list launches by status")
				respondWithError(c, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list launches", nil)
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": h.presentAll(runs), "total": len(runs)})
		default:
			respondWithError(c, http.StatusBadRequest, "INVALID_STATUS", "Unknown launch status", status)
		}
		return
	}

	page, size := parsePagination(c)
	runs, total, err := h.repo.List(c.Request.Context(), page, size)
	if err != nil {
		h.log.WithError(err).Error("Failed to list launches")
		respondWithError(c, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list launches", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": h.presentAll(runs),
		"pagination": gin.H{
			"page":  page,
			"size":  size,
			"total": total,
			"pages": (total + int64(size) - 1) / int64(size),
		},
	})
}

// GetLaunchHandler handles GET /api/launches/:id
func (h *LaunchHandler) GetLaunchHandler(c *gin.Context) {
	run, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	h.respondRun(c, run, err)
}

// GetLaunchByTokenHandler handles GET /api/tokens/:address/launch
func (h *LaunchHandler) GetLaunchByTokenHandler(c *gin.Context) {
	address := c.Param("address")
	if !utils.IsEvmAddress(address) {
		respondWithError(c, http.StatusBadRequest, "INVALID_ADDRESS", "Invalid token address", address)
		return
	}
	run, err := h.repo.FindByTokenAddress(c.Request.Context(), utils.NormalizeAddress(address))
	h.respondRun(c, run, err)
}

func (h *LaunchHandler) respondRun(c *gin.Context, run *models.LaunchRun, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondWithError(c, http.StatusNotFound, "NOT_FOUND", "Launch not found", nil)
	case err != nil:
		h.log.WithError(err).Error("Failed to load launch")
		respondWithError(c, http.StatusInternalServerError, "QUERY_FAILED", "Failed to load launch", nil)
	default:
		c.JSON(http.StatusOK, h.present(run))
	}
}

func (h *LaunchHandler) presentAll(runs []*models.LaunchRun) []LaunchResponse {
	out := make([]LaunchResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, h.present(run))
	}
	return out
}
