// Command demo_adserver serves waterfalls, network creatives and a beacon
// sink for running the slot server locally.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/echoface/adslot/internal/adapters/network"
	"github.com/echoface/adslot/internal/adsource"
	"github.com/echoface/adslot/pkg/jsonx"
	"github.com/echoface/adslot/pkg/logger"
)

type demoServer struct {
	baseURL    string
	waterfalls map[string]adsource.Response
	log        logger.Logger

	mu   sync.Mutex
	hits map[string]int
}

func newDemoServer(baseURL string, waterfalls map[string]adsource.Response, log logger.Logger) *demoServer {
	return &demoServer{
		baseURL:    baseURL,
		waterfalls: waterfalls,
		log:        logger.OrDefault(log),
		hits:       make(map[string]int),
	}
}

func (s *demoServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/m/ad", s.waterfall)
	r.GET("/creative", s.creative)
	r.GET("/track/:kind", s.track)
	r.GET("/stats", s.stats)
	return r
}

// waterfall answers with the configured response for ?id, or a default
// network-then-html waterfall pointing back at this server.
func (s *demoServer) waterfall(c *gin.Context) {
	adUnitID := c.Query("id")
	if adUnitID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id"})
		return
	}

	resp, ok := s.waterfalls[adUnitID]
	if !ok {
		resp = s.defaultWaterfall(adUnitID)
	}
	if len(resp.Candidates) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	resp.AdUnitID = adUnitID
	s.log.Info("waterfall served", "ad_unit_id", adUnitID, "candidates", len(resp.Candidates),
		"request_id", c.Query("req"))
	c.JSON(http.StatusOK, resp)
}

func (s *demoServer) defaultWaterfall(adUnitID string) adsource.Response {
	track := func(kind string) string {
		return fmt.Sprintf("%s/track/%s?id=%s", s.baseURL, kind, adUnitID)
	}
	return adsource.Response{
		Candidates: []adsource.Candidate{
			{
				Kind:    adsource.KindNetwork,
				Network: "demo-network",
				Params: map[string]any{
					network.ParamEndpoint:    s.baseURL + "/creative",
					network.ParamPlacementID: adUnitID,
					network.ParamNetwork:     "demo-network",
				},
				ImpressionURL: track("impression"),
				ClickURL:      track("click"),
				FailURL:       track("fail"),
			},
			{
				Kind:            adsource.KindHTML,
				Markup:          "<html><body>house ad for " + adUnitID + "</body></html>",
				ClickthroughURL: "https://example.com/house",
				ImpressionURL:   track("impression"),
				ClickURL:        track("click"),
			},
		},
	}
}

// creative fills every placement except "nofill".
func (s *demoServer) creative(c *gin.Context) {
	placement := c.Query(network.ParamPlacementID)
	if placement == "" || placement == "nofill" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, network.Creative{
		Markup:          "<html><body>network ad for " + placement + "</body></html>",
		ClickthroughURL: "https://example.com/advertiser",
	})
}

func (s *demoServer) track(c *gin.Context) {
	key := c.Param("kind") + ":" + c.Query("id")
	s.mu.Lock()
	s.hits[key]++
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *demoServer) stats(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.hits))
	for k, v := range s.hits {
		out[k] = v
	}
	c.JSON(http.StatusOK, out)
}

// loadWaterfalls reads a JSON object mapping ad unit ids to responses.
func loadWaterfalls(path string) (map[string]adsource.Response, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var waterfalls map[string]adsource.Response
	if err := jsonx.Unmarshal(data, &waterfalls); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return waterfalls, nil
}

func main() {
	addr := os.Getenv("DEMO_ADSERVER_ADDR")
	if addr == "" {
		addr = "localhost:8081"
	}

	waterfalls, err := loadWaterfalls(os.Getenv("DEMO_WATERFALLS"))
	if err != nil {
		log.Fatalf("Failed to load waterfalls: %v", err)
	}

	lg := logger.Default.With("service", "demo_adserver")
	srv := newDemoServer("http://"+addr, waterfalls, lg)

	lg.Info("demo ad server starting", "addr", addr, "waterfalls", len(waterfalls))
	if err := srv.routes().Run(addr); err != nil {
		log.Fatal("Failed to start demo ad server:", err)
	}
}
