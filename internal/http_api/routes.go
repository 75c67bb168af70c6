package http_api

import "github.com/gin-gonic/gin"

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	api := s.router.Group("/api/v1")

	pool := api.Group("/pool")
	pool.GET("", s.getPool)
	pool.POST("/initialize", s.initialize)
	pool.POST("/deposit", s.deposit)
	pool.POST("/withdraw", s.withdraw)
	pool.PUT("/base_fee", s.setBaseFee)
	pool.PUT("/fee_per_ad", s.setFeePerAd)
	pool.POST("/pause", s.togglePause)

	ads := api.Group("/ads")
	ads.GET("", s.listAds)
	ads.POST("", s.createAd)
	ads.GET("/:id", s.getAd)
	ads.POST("/:id/toggle", s.toggleAd)

	requests := api.Group("/requests")
	requests.GET("", s.listRequests)
	requests.POST("", s.initiate)
	requests.GET("/:id", s.getRequest)
	requests.POST("/:id/settle", s.settle)
	requests.POST("/:id/cancel", s.cancel)

	api.GET("/fee", s.quoteFee)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}
