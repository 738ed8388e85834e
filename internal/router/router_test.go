package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-launcher/internal/handlers"
	"token-launcher/internal/models"
	"token-launcher/internal/repository"
	"token-launcher/internal/utils"
)

const tokenHex = "0x00000000000000000000000000000000000070C0"

func setup(t *testing.T, health map[string]handlers.Pinger, allowed []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, err := repository.NewPebbleLaunchRunRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &models.LaunchRun{ID: "a", Status: models.LaunchRunStatusCompleted, Symbol: "AAA", TokenAddress: tokenHex, LiquidityTxHash: "0xfeed", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &models.LaunchRun{ID: "b", Status: models.LaunchRunStatusFailed, Symbol: "BBB", FailedStep: "burn_excess", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.LaunchRun{ID: "c", Status: models.LaunchRunStatusFailed, Symbol: "CCC", CreatedAt: base.Add(2 * time.Minute)}))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	celo, _ := utils.GlobalChainRegistry.GetByKey("celo")

	return SetupRouter(Options{
		Launches:   handlers.NewLaunchHandler(repo, celo, logger),
		Health:     health,
		AllowedIPs: allowed,
		Logger:     logger,
	})
}

func get(r http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const local = "127.0.0.1:40000"

func TestListLaunches_Paginated(t *testing.T) {
	r := setup(t, nil, nil)

	w := get(r, "/api/launches?page=1&size=2", local)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)

	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "c", data[0].(map[string]interface{})["id"])
	pagination := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(3), pagination["total"])
	assert.Equal(t, float64(2), pagination["pages"])
}

func TestListLaunches_ByStatus(t *testing.T) {
	r := setup(t, nil, nil)

	w := get(r, "/api/launches?status=failed", local)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["total"])

	w = get(r, "/api/launches?status=exploded", local)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLaunch(t *testing.T) {
	r := setup(t, nil, nil)

	w := get(r, "/api/launches/a", local)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "AAA", body["symbol"])
	links := body["links"].(map[string]interface{})
	assert.Equal(t, "https://celoscan.io/tx/0xfeed", links["liquidity_tx"])
	assert.Equal(t, "https://celoscan.io/address/"+tokenHex, links["token"])

	w = get(r, "/api/launches/zzz", local)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["error"])
}

func TestGetLaunchByToken(t *testing.T) {
	r := setup(t, nil, nil)

	w := get(r, "/api/tokens/0x00000000000000000000000000000000000070c0/launch", local)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", decode(t, w)["id"])

	w = get(r, "/api/tokens/not-an-address/launch", local)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_IPAllowlist(t *testing.T) {
	r := setup(t, nil, []string{"10.1.0.0/16"})

	assert.Equal(t, http.StatusForbidden, get(r, "/api/launches", "192.0.2.10:5000").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/launches", "10.1.2.3:5000").Code)
	// health and metrics stay open
	assert.Equal(t, http.StatusOK, get(r, "/health", "192.0.2.10:5000").Code)
	assert.Equal(t, http.StatusOK, get(r, "/metrics", "192.0.2.10:5000").Code)
}

func TestHealth_Degraded(t *testing.T) {
	r := setup(t, map[string]handlers.Pinger{
		"store": func(context.Context) error { return nil },
		"rpc":   func(context.Context) error { return errors.New("connection refused") },
	}, nil)

	w := get(r, "/health", local)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["store"])
	assert.Equal(t, "connection refused", checks["rpc"])
}

func TestNoRoute(t *testing.T) {
	r := setup(t, nil, nil)
	assert.Equal(t, http.StatusNotFound, get(r, "/nope", local).Code)
}
