package api

import (
	"net/http"

	"api_pos/internal/auth"
	"api_pos/internal/catalog"
	"api_pos/internal/dashboard"
	"api_pos/internal/payment"
	"api_pos/internal/realtime"
	"api_pos/internal/sales"
	"api_pos/internal/staff"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dependencies are the services the HTTP layer exposes.
type Dependencies struct {
	Sales       *sales.Service
	Catalog     *catalog.Service
	Auth        *auth.Service
	Payments    *payment.Service
	Dashboard   *dashboard.Service
	Staff       *staff.Service
	Hub         *realtime.Hub
	Logger      *zap.Logger
	CORSOrigins []string
	TaxRate     decimal.Decimal
}

// InitRoutes registers every endpoint on the given Gin engine. Public routes
// are /ping, /login and the provider callback; the rest need a token, and
// reporting, staff and catalog writes need an admin or manager.
func InitRoutes(e *gin.Engine, d Dependencies) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	salesHandler := NewSalesHandler(d.Sales, logger)
	catalogHandler := NewCatalogHandler(d.Catalog, logger)
	authHandler := NewAuthHandler(d.Auth, logger)
	paymentHandler := NewPaymentHandler(d.Payments, d.Hub, logger)
	dashboardHandler := NewDashboardHandler(d.Dashboard, logger)
	staffHandler := NewStaffHandler(d.Staff, logger)

	e.Use(requestID(), corsMiddleware(d.CORSOrigins))

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	e.POST("/login", authHandler.login)
	e.POST("/mpesa/callback", paymentHandler.callback)

	authed := e.Group("/", authenticate(d.Auth))
	managers := requireRole(auth.RoleAdmin, auth.RoleManager)
	admins := requireRole(auth.RoleAdmin)

	authed.GET("/me", authHandler.me)
	authed.GET("/settings", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tax_rate": d.TaxRate})
	})

	authed.POST("/sales", salesHandler.handleCreateSale)
	authed.GET("/sales", managers, salesHandler.handleListSales)
	authed.GET("/sales/:id", salesHandler.handleGetSale)
	authed.DELETE("/sales/:id", managers, salesHandler.handleDeleteSale)

	authed.GET("/categories", catalogHandler.listCategories)
	authed.GET("/categories/:id", catalogHandler.getCategory)
	authed.POST("/categories", managers, catalogHandler.saveCategory)
	authed.PUT("/categories/:id", managers, catalogHandler.saveCategory)
	authed.DELETE("/categories/:id", managers, catalogHandler.deleteCategory)

	authed.GET("/products", catalogHandler.listProducts)
	authed.GET("/products/:id", catalogHandler.getProduct)
	authed.POST("/products", managers, catalogHandler.createProduct)
	authed.PUT("/products/:id", managers, catalogHandler.updateProduct)
	authed.DELETE("/products/:id", managers, catalogHandler.deleteProduct)

	authed.GET("/dashboard", managers, dashboardHandler.summary)
	authed.GET("/dashboard/chart", managers, dashboardHandler.chart)

	authed.GET("/users", managers, authHandler.listUsers)
	authed.POST("/users", managers, authHandler.createUser)
	authed.PUT("/users/:id", managers, authHandler.updateUser)
	authed.POST("/users/:id/toggle-status", managers, authHandler.toggleStatus)
	authed.DELETE("/users/:id", admins, authHandler.deleteUser)

	authed.GET("/departments", managers, staffHandler.listDepartments)
	authed.POST("/departments", managers, staffHandler.saveDepartment)
	authed.PUT("/departments/:id", managers, staffHandler.saveDepartment)
	authed.DELETE("/departments/:id", managers, staffHandler.deleteDepartment)

	authed.GET("/positions", managers, staffHandler.listPositions)
	authed.POST("/positions", managers, staffHandler.savePosition)
	authed.PUT("/positions/:id", managers, staffHandler.savePosition)
	authed.DELETE("/positions/:id", managers, staffHandler.deletePosition)

	authed.GET("/employees", managers, staffHandler.listEmployees)
	authed.GET("/employees/:id", managers, staffHandler.getEmployee)
	authed.POST("/employees", managers, staffHandler.saveEmployee)
	authed.PUT("/employees/:id", managers, staffHandler.saveEmployee)
	authed.DELETE("/employees/:id", managers, staffHandler.deleteEmployee)

	authed.POST("/mpesa/stk-push", paymentHandler.stkPush)
	authed.GET("/mpesa/status/:checkoutRequestID", paymentHandler.status)
	authed.GET("/mpesa/transactions", managers, paymentHandler.list)
	authed.GET("/ws/payments", paymentHandler.websocket)
}
