package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"settlement-service/internal/models"
	"settlement-service/internal/service"
	"settlement-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// Handler contains HTTP handlers
type Handler struct {
	checkout   *service.CheckoutService
	webhooks   *service.WebhookService
	status     *service.StatusService
	affiliates *service.AffiliateService
	lifecycle  *service.Lifecycle
	refunds    *service.RefundService
	gateways   *service.GatewayService
	store      service.Store
	devMode    bool
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	webhooks *service.WebhookService,
	status *service.StatusService,
	affiliates *service.AffiliateService,
	lifecycle *service.Lifecycle,
	refunds *service.RefundService,
	gateways *service.GatewayService,
	store service.Store,
	devMode bool,
) *Handler {
	return &Handler{
		checkout:   checkout,
		webhooks:   webhooks,
		status:     status,
		affiliates: affiliates,
		lifecycle:  lifecycle,
		refunds:    refunds,
		gateways:   gateways,
		store:      store,
		devMode:    devMode,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, operatorKeys map[string]string) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", h.paymentWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.createCheckout)
		v1.GET("/requests/:reference/status", h.requestStatus)
		v1.POST("/track", h.trackEvent)
	}

	admin := v1.Group("/admin")
	admin.Use(RequireRole(operatorKeys, RoleAdmin, RoleBroker, RoleCA, RoleLawyer))
	{
		admin.GET("/requests/:id", h.getRequest)
		admin.POST("/requests/:id/status", h.transitionRequest)
		admin.POST("/requests/:id/assign", h.assignProvider)
	}

	root := v1.Group("/admin")
	root.Use(RequireRole(operatorKeys, RoleAdmin))
	{
		root.POST("/requests/:id/refund", h.refundRequest)
		root.GET("/affiliates", h.listAffiliates)
		root.POST("/affiliates", h.createAffiliate)
		root.PATCH("/affiliates/:id", h.updateAffiliate)
		root.POST("/gateway-configs", h.createGatewayConfig)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createCheckout handles purchase intent creation
func (h *Handler) createCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	resp, err := h.checkout.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// paymentWebhook ingests gateway webhook deliveries. The raw body is read
// before any parsing so signature verification sees exactly the bytes sent.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable request body"})
		return
	}

	resp, err := h.webhooks.Process(c.Request.Context(), body, c.GetHeader)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// requestStatus handles public status lookups by reference number
func (h *Handler) requestStatus(c *gin.Context) {
	resp, err := h.status.Lookup(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// trackEvent records an attribution event
func (h *Handler) trackEvent(c *gin.Context) {
	var req service.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	event, err := h.affiliates.Track(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"event_id":     event.ID,
		"affiliate_id": event.AffiliateID,
	})
}

// getRequest returns the full operator view of a request
func (h *Handler) getRequest(c *gin.Context) {
	req, ok := h.loadRequest(c)
	if !ok {
		return
	}

	history, err := h.store.GetStatusHistory(c.Request.Context(), req.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request": req,
		"history": history,
	})
}

type transitionRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

// transitionRequest applies an operator status transition
func (h *Handler) transitionRequest(c *gin.Context) {
	var body transitionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	req, ok := h.loadRequest(c)
	if !ok {
		return
	}
	if body.Status == req.Status {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "The request is already in that status; choose a different status.",
		})
		return
	}

	actor := actorID(c)
	if err := h.lifecycle.Transition(c.Request.Context(), req, body.Status, &actor, body.Notes); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": req})
}

type assignRequest struct {
	ProviderID int64 `json:"provider_id"`
}

// assignProvider sets the fulfillment provider on a request
func (h *Handler) assignProvider(c *gin.Context) {
	var body assignRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.ProviderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A positive provider_id is required"})
		return
	}

	req, ok := h.loadRequest(c)
	if !ok {
		return
	}

	actor := actorID(c)
	if err := h.lifecycle.AssignProvider(c.Request.Context(), req, body.ProviderID, &actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": req})
}

// refundRequest executes a full refund through the active gateway
func (h *Handler) refundRequest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	actor := actorID(c)
	resp, err := h.refunds.Refund(c.Request.Context(), id, &actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listAffiliates(c *gin.Context) {
	summaries, err := h.affiliates.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affiliates": summaries})
}

func (h *Handler) createAffiliate(c *gin.Context) {
	var req service.CreateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	aff, err := h.affiliates.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, aff)
}

func (h *Handler) updateAffiliate(c *gin.Context) {
	var req service.UpdateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	aff, err := h.affiliates.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, aff)
}

type gatewayConfigRequest struct {
	Gateway       string `json:"gateway"`
	KeyID         string `json:"key_id"`
	KeySecret     string `json:"key_secret"`
	WebhookSecret string `json:"webhook_secret"`
	IsDefault     bool   `json:"is_default"`
}

// createGatewayConfig registers gateway credentials. Secrets are accepted on
// input and never echoed back.
func (h *Handler) createGatewayConfig(c *gin.Context) {
	var req gatewayConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	cfg := &models.GatewayConfig{
		Gateway:       req.Gateway,
		KeyID:         req.KeyID,
		KeySecret:     req.KeySecret,
		WebhookSecret: req.WebhookSecret,
		IsDefault:     req.IsDefault,
		Active:        true,
	}
	if err := h.gateways.CreateConfig(c.Request.Context(), cfg); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

// loadRequest parses the :id param and loads the request, responding on
// failure.
func (h *Handler) loadRequest(c *gin.Context) (*models.ServiceRequest, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return nil, false
	}

	req, err := h.store.GetServiceRequestByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if req == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service request not found"})
		return nil, false
	}
	return req, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
