package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeremiapane/restaurant-platform/config"
	"github.com/yeremiapane/restaurant-platform/controllers"
	"github.com/yeremiapane/restaurant-platform/kds"
	"github.com/yeremiapane/restaurant-platform/middlewares"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

// Role groups used by the routes below. Admins pass every check.
var (
	floorStaff = []string{models.RoleManager, models.RoleStaff, models.RoleCashier}
	kitchen    = []string{models.RoleManager, models.RoleStaff, models.RoleChef, models.RoleCashier}
	cashDesk   = []string{models.RoleManager, models.RoleCashier}
	managers   = []string{models.RoleManager}
)

// SetupRouter registers the routes of every service this process runs.
func SetupRouter(cfg *config.Config, svc *Services, hub *kds.Hub) *gin.Engine {
	if cfg.Server.Mode == gin.ReleaseMode || cfg.Server.Mode == gin.TestMode {
		gin.SetMode(cfg.Server.Mode)
	}
	utils.ShowErrorDetail = !cfg.IsProduction()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders(cfg.IsProduction()))
	r.Use(middlewares.CORSMiddlewares(cfg.Server.AllowedOrigins))
	if cfg.Server.RateLimit > 0 {
		r.Use(middlewares.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).RateLimit())
	}

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "service": cfg.Service})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		utils.RespondError(c, utils.NewNotFoundError("route %s not found", c.Request.URL.Path))
	})

	auth := middlewares.AuthMiddleware(svc.Verifier)

	kdsCtrl := controllers.NewKDSController(hub)
	r.GET("/ws", middlewares.WebSocketAuthMiddleware(svc.Verifier), kdsCtrl.Handle)

	if cfg.Runs(config.ServiceUser) {
		userCtrl := controllers.NewUserController(svc.Users)

		public := r.Group("/auth")
		public.Use(middlewares.NewStrictRateLimiter())
		{
			public.POST("/register", userCtrl.Register)
			public.POST("/login", userCtrl.Login)
		}

		users := r.Group("/auth", auth)
		{
			users.GET("/profile", userCtrl.Profile)
			users.POST("/logout", userCtrl.Logout)
			users.GET("/users", middlewares.RoleCheck(managers...), userCtrl.GetAllUsers)
			users.GET("/users/:id", middlewares.RoleCheck(managers...), userCtrl.GetUserByID)
		}
	}

	if cfg.Runs(config.ServiceTable) {
		tableCtrl := controllers.NewTableController(svc.Tables)

		tables := r.Group("/tables", auth)
		{
			tables.GET("", tableCtrl.GetAllTables)
			tables.GET("/:id", tableCtrl.GetTableByID)
			tables.POST("", middlewares.RoleCheck(managers...), tableCtrl.CreateTable)
			tables.PUT("/:id", middlewares.RoleCheck(managers...), tableCtrl.UpdateTable)
			tables.DELETE("/:id", middlewares.RoleCheck(managers...), tableCtrl.DeleteTable)
		}
	}

	if cfg.Runs(config.ServiceFood) {
		foodCtrl := controllers.NewFoodController(svc.Foods)

		foods := r.Group("/foods", auth)
		{
			foods.GET("", foodCtrl.GetAllFoods)
			foods.GET("/:id", foodCtrl.GetFoodByID)
			foods.GET("/:id/stock-movements", middlewares.RoleCheck(managers...), foodCtrl.StockMovements)
			foods.POST("", middlewares.RoleCheck(managers...), foodCtrl.CreateFood)
			foods.PUT("/:id", middlewares.RoleCheck(managers...), foodCtrl.UpdateFood)
			foods.DELETE("/:id", middlewares.RoleCheck(managers...), foodCtrl.DeleteFood)
			// Called by the order service on behalf of the waiter, so any
			// kitchen or floor role may move stock.
			foods.PATCH("/:id/stock", middlewares.RoleCheck(kitchen...), foodCtrl.AdjustStock)
		}
	}

	if cfg.Runs(config.ServiceReservation) {
		reservationCtrl := controllers.NewReservationController(svc.Reservations)
		customerCtrl := controllers.NewCustomerController(svc.Customers)

		reservations := r.Group("/reservations", auth)
		{
			reservations.GET("", middlewares.RoleCheck(floorStaff...), reservationCtrl.GetAllReservations)
			reservations.POST("", middlewares.RoleCheck(floorStaff...), reservationCtrl.CreateReservation)
			reservations.GET("/available", middlewares.RoleCheck(floorStaff...), reservationCtrl.GetAvailableTables)
			// Read by the order and payment services.
			reservations.GET("/:id", middlewares.RoleCheck(kitchen...), reservationCtrl.GetReservationByID)
			reservations.PATCH("/:id", middlewares.RoleCheck(floorStaff...), reservationCtrl.UpdateReservation)
			reservations.PUT("/:id/assign-table", middlewares.RoleCheck(floorStaff...), reservationCtrl.AssignTable)
			reservations.PUT("/:id/unassign-table", middlewares.RoleCheck(floorStaff...), reservationCtrl.UnassignTable)
			reservations.PUT("/:id/checkin", middlewares.RoleCheck(floorStaff...), reservationCtrl.CheckIn)
			reservations.PUT("/:id/cancel", middlewares.RoleCheck(floorStaff...), reservationCtrl.Cancel)
		}

		customers := r.Group("/customers", auth, middlewares.RoleCheck(floorStaff...))
		{
			customers.GET("", customerCtrl.GetAllCustomers)
			customers.GET("/:id", customerCtrl.GetCustomerByID)
		}
	}

	if cfg.Runs(config.ServiceOrder) {
		orderCtrl := controllers.NewOrderController(svc.Orders)
		itemCtrl := controllers.NewOrderItemController(svc.Items)

		orders := r.Group("/orders", auth, middlewares.RoleCheck(kitchen...))
		{
			orders.GET("", orderCtrl.GetAllOrders)
			orders.POST("", orderCtrl.CreateOrder)
			orders.GET("/by-reservation/:id", orderCtrl.GetOrdersByReservation)
			orders.GET("/:id", orderCtrl.GetOrderByID)
			orders.PATCH("/:id", orderCtrl.UpdateOrder)
			orders.PATCH("/:id/status", orderCtrl.UpdateOrderStatus)
			orders.DELETE("/:id", orderCtrl.DeleteOrder)
		}

		items := r.Group("/order-items", auth, middlewares.RoleCheck(kitchen...))
		{
			items.GET("", itemCtrl.GetAllOrderItems)
			items.POST("", itemCtrl.CreateOrderItem)
			items.GET("/reconciliation", middlewares.RoleCheck(managers...), itemCtrl.PendingReconciliation)
			items.GET("/:id", itemCtrl.GetOrderItemByID)
			items.PATCH("/:id", itemCtrl.UpdateOrderItem)
			items.PATCH("/:id/status", itemCtrl.UpdateOrderItemStatus)
			items.DELETE("/:id", itemCtrl.DeleteOrderItem)
			items.POST("/:id/reconcile-stock", middlewares.RoleCheck(managers...), itemCtrl.ReconcileStock)
		}
	}

	if cfg.Runs(config.ServicePayment) {
		paymentCtrl := controllers.NewPaymentController(svc.Payments)
		receiptCtrl := controllers.NewReceiptController(svc.Payments)
		discountCtrl := controllers.NewDiscountController(svc.Discounts)

		payments := r.Group("/payments", auth, middlewares.RoleCheck(cashDesk...), middlewares.PaymentSecurityHeaders())
		{
			payments.GET("", paymentCtrl.GetAllPayments)
			payments.POST("", middlewares.PaymentRateLimiter(), paymentCtrl.CreatePayment)
			payments.GET("/:id", paymentCtrl.GetPaymentByID)
			payments.PATCH("/:id/status", middlewares.PaymentRateLimiter(), paymentCtrl.UpdatePaymentStatus)
			payments.GET("/:id/receipt", middlewares.ReceiptLoggerMiddleware(), receiptCtrl.GetReceipt)
		}

		discounts := r.Group("/discounts", auth)
		{
			discounts.GET("", middlewares.RoleCheck(cashDesk...), discountCtrl.GetAllDiscounts)
			discounts.GET("/code/:code", middlewares.RoleCheck(cashDesk...), discountCtrl.GetDiscountByCode)
			discounts.GET("/:id", middlewares.RoleCheck(cashDesk...), discountCtrl.GetDiscountByID)
			discounts.POST("", middlewares.RoleCheck(managers...), discountCtrl.CreateDiscount)
			discounts.PATCH("/:id", middlewares.RoleCheck(managers...), discountCtrl.UpdateDiscount)
			discounts.DELETE("/:id", middlewares.RoleCheck(managers...), discountCtrl.DeleteDiscount)
		}
	}

	return r
}
