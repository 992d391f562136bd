package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoface/adslot/internal/adapters/network"
	"github.com/echoface/adslot/internal/adsource"
	"github.com/echoface/adslot/pkg/jsonx"
	"github.com/echoface/adslot/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func get(t *testing.T, r http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
	return w
}

func TestDemoServer_DefaultWaterfall(t *testing.T) {
	r := newDemoServer("http://demo", nil, logger.Nop()).routes()

	w := get(t, r, "/m/ad?id=unit-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp adsource.Response
	require.NoError(t, jsonx.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unit-1", resp.AdUnitID)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, adsource.KindNetwork, resp.Candidates[0].Kind)
	assert.Equal(t, "http://demo/creative", resp.Candidates[0].Params[network.ParamEndpoint])
	assert.Equal(t, adsource.KindHTML, resp.Candidates[1].Kind)

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/m/ad").Code)
}

func TestDemoServer_ConfiguredWaterfalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waterfalls.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"empty": {"candidates": []},
		"html-only": {"candidates": [{"kind": "html", "markup": "<p>x</p>"}]}
	}`), 0o644))

	waterfalls, err := loadWaterfalls(path)
	require.NoError(t, err)
	r := newDemoServer("http://demo", waterfalls, logger.Nop()).routes()

	assert.Equal(t, http.StatusNoContent, get(t, r, "/m/ad?id=empty").Code)

	w := get(t, r, "/m/ad?id=html-only")
	require.Equal(t, http.StatusOK, w.Code)
	var resp adsource.Response
	require.NoError(t, jsonx.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "<p>x</p>", resp.Candidates[0].Markup)
}

func TestDemoServer_CreativeAndTracking(t *testing.T) {
	r := newDemoServer("http://demo", nil, logger.Nop()).routes()

	assert.Equal(t, http.StatusNoContent, get(t, r, "/creative?placement_id=nofill").Code)
	w := get(t, r, "/creative?placement_id=p-1")
	require.Equal(t, http.StatusOK, w.Code)
	var creative network.Creative
	require.NoError(t, jsonx.Unmarshal(w.Body.Bytes(), &creative))
	assert.Contains(t, creative.Markup, "p-1")

	get(t, r, "/track/impression?id=unit-1")
	get(t, r, "/track/impression?id=unit-1")
	get(t, r, "/track/click?id=unit-1")

	var stats map[string]int
	require.NoError(t, jsonx.Unmarshal(get(t, r, "/stats").Body.Bytes(), &stats))
	assert.Equal(t, map[string]int{"impression:unit-1": 2, "click:unit-1": 1}, stats)
}

func TestLoadWaterfalls_Errors(t *testing.T) {
	w, err := loadWaterfalls("")
	assert.NoError(t, err)
	assert.Nil(t, w)

	_, err = loadWaterfalls(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = loadWaterfalls(bad)
	assert.ErrorContains(t, err, "failed to decode")
}
