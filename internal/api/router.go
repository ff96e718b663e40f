package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"meeting-resource-backend/config"
	"meeting-resource-backend/internal/ledger"
	"meeting-resource-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, handler *Handler) *gin.Engine {
	r := gin.Default()

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length", "X-Cache"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		rooms := api.Group("/rooms")
		rooms.GET("", handler.ListRooms)
		rooms.POST("", handler.CreateRoom)
		rooms.GET("/:id", handler.GetRoom)
		rooms.PUT("/:id", handler.UpdateRoom)
		rooms.DELETE("/:id", handler.DeleteRoom)
		rooms.POST("/:id/archive", handler.ArchiveRoom)
		rooms.GET("/:id/state", handler.GetRoomLiveState)
		rooms.PUT("/:id/state", handler.SetRoomState)
		rooms.PUT("/:id/assets", handler.AttachRoomAssets)

		assets := api.Group("/assets")
		assets.GET("", handler.ListAssets)
		assets.POST("", handler.CreateAsset)
		assets.GET("/:id", handler.GetAsset)
		assets.PUT("/:id", handler.UpdateAsset)
		assets.DELETE("/:id", handler.DeleteAsset)
		assets.POST("/:id/archive", handler.ArchiveAsset)
		assets.PUT("/:id/state", handler.SetAssetState)
		assets.GET("/:id/depreciation", handler.GetAssetDepreciation)

		bookings := api.Group("/bookings")
		bookings.GET("", handler.ListBookings)
		bookings.POST("", handler.CreateBooking)
		bookings.GET("/:id", handler.GetBooking)
		bookings.PUT("/:id", handler.UpdateBooking)
		bookings.POST("/:id/confirm", handler.BookingTransition((*ledger.Service).ConfirmBooking))
		bookings.POST("/:id/cancel", handler.BookingTransition((*ledger.Service).CancelBooking))
		bookings.POST("/:id/draft", handler.BookingTransition((*ledger.Service).SetBookingDraft))

		maintenance := api.Group("/maintenance")
		maintenance.GET("", handler.ListMaintenance)
		maintenance.POST("", handler.CreateMaintenance)
		maintenance.GET("/:id", handler.GetMaintenance)
		maintenance.PUT("/:id", handler.UpdateMaintenance)
		maintenance.POST("/:id/submit", handler.MaintenanceTransition((*ledger.Service).SubmitMaintenance))
		maintenance.POST("/:id/start", handler.MaintenanceTransition((*ledger.Service).StartMaintenance))
		maintenance.POST("/:id/done", handler.MaintenanceTransition((*ledger.Service).DoneMaintenance))
		maintenance.POST("/:id/cancel", handler.MaintenanceTransition((*ledger.Service).CancelMaintenance))
		maintenance.POST("/:id/draft", handler.MaintenanceTransition((*ledger.Service).SetMaintenanceDraft))

		api.POST("/search", handler.Search)
		api.POST("/search/parse", handler.ParseRequest)
		api.POST("/search/recommend", handler.Recommend)

		catalog := api.Group("", caching)
		catalog.GET("/equipment-types", handler.ListEquipmentTypes)
		catalog.POST("/equipment-types", handler.CreateEquipmentType)
		catalog.GET("/asset-categories", handler.ListAssetCategories)
		catalog.POST("/asset-categories", handler.CreateAssetCategory)
		catalog.GET("/branches", handler.ListBranches)
		catalog.POST("/branches", handler.CreateBranch)

		api.POST("/employees", handler.CreateEmployee)
		api.POST("/departments", handler.CreateDepartment)
		api.POST("/maintenance-categories", handler.CreateMaintenanceCategory)
		api.POST("/maintenance-teams", handler.CreateMaintenanceTeam)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
