package booking

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the booking API. rg must already carry authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	bookings := rg.Group("/booking")
	{
		bookings.POST("/create", h.CreateBooking)
		bookings.GET("/list", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id", h.UpdateBooking)
		bookings.PUT("/:id/accept", h.AcceptBooking)
		bookings.PUT("/:id/reject", h.RejectBooking)
		bookings.POST("/:id/pay-deposit", h.PayDeposit)
		bookings.POST("/:id/pay-final", h.PayFinal)
		bookings.PUT("/:id/cancel", h.CancelBooking)
		bookings.GET("/:id/history", h.GetHistory)
		bookings.GET("/:id/refunds", h.GetRefunds)
	}
}
