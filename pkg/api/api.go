// Package api exposes the service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"

	"ordermgmt/pkg/logger"
	"ordermgmt/pkg/order"
	"ordermgmt/pkg/otel"
	"ordermgmt/pkg/product"
	"ordermgmt/pkg/service"
)

// Handler serves the product and order routes.
type Handler struct {
	svc    *service.Service
	log    *logger.Logger
	tracer trace.Tracer
}

// New creates a Handler. tracer may be nil, in which case spans are no-ops.
func New(svc *service.Service, log *logger.Logger, tracer trace.Tracer) *Handler {
	return &Handler{svc: svc, log: log, tracer: tracer}
}

// Router registers every route on a gorilla/mux router.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(h.requestIDMiddleware, h.traceMiddleware, h.logMiddleware)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	products := r.PathPrefix("/products").Subrouter()
	products.HandleFunc("", h.createProduct).Methods(http.MethodPost)
	products.HandleFunc("/", h.createProduct).Methods(http.MethodPost)
	products.HandleFunc("/{id}", h.getProduct).Methods(http.MethodGet)
	products.HandleFunc("/{id}", h.updateProduct).Methods(http.MethodPut)

	orders := r.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("", h.createOrder).Methods(http.MethodPost)
	orders.HandleFunc("/", h.createOrder).Methods(http.MethodPost)
	orders.HandleFunc("", h.listOrders).Methods(http.MethodGet)
	orders.HandleFunc("/", h.listOrders).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", h.getOrder).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", h.updateOrder).Methods(http.MethodPut)
	orders.HandleFunc("/{id}", h.deleteOrder).Methods(http.MethodDelete)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// createOrderRequest is the body of POST /orders.
type createOrderRequest struct {
	ID         int   `json:"id"`
	ProductIDs []int `json:"product_ids"`
}

// updateOrderRequest is the body of PUT /orders/{id}. Both fields are optional.
type updateOrderRequest struct {
	Status     *string `json:"status"`
	ProductIDs []int   `json:"product_ids"`
}

// updateProductResponse is returned by PUT /products/{id}.
type updateProductResponse struct {
	Message string          `json:"message"`
	Data    product.Product `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// health reports liveness and store sizes.
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /healthz [get]
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	products, orders := h.svc.Stats()
	h.respond(r.Context(), w, http.StatusOK, map[string]any{
		"status":   "ok",
		"products": products,
		"orders":   orders,
	})
}

// createProduct creates a new product.
// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param product body product.Product true "Product"
// @Success 201 {object} product.Product
// @Failure 409 {object} errorResponse
// @Router /products [post]
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.createProduct")
	defer span.End()

	var p product.Product
	if err := decode(r, &p); err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	created, err := h.svc.CreateProduct(ctx, p)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.respond(ctx, w, http.StatusCreated, created)
}

// getProduct retrieves a product by ID.
// @Summary Get product
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} product.Product
// @Failure 404 {object} errorResponse
// @Router /products/{id} [get]
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.getProduct")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	p, err := h.svc.GetProduct(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, p)
}

// updateProduct replaces an existing product.
// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param product body product.Product true "Product"
// @Success 200 {object} updateProductResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id} [put]
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.updateProduct")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	var p product.Product
	if err := decode(r, &p); err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	updated, err := h.svc.UpdateProduct(ctx, id, p)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, updateProductResponse{Message: "product updated", Data: updated})
}

// createOrder creates an order from existing products.
// @Summary Create order
// @Tags orders
// @Accept json
// @Produce json
// @Param order body createOrderRequest true "Order"
// @Success 201 {object} order.Order
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /orders [post]
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.createOrder")
	defer span.End()

	var req createOrderRequest
	if err := decode(r, &req); err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	o, err := h.svc.CreateOrder(ctx, req.ID, req.ProductIDs)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.respond(ctx, w, http.StatusCreated, o)
}

// listOrders lists every order in creation order.
// @Summary List orders
// @Tags orders
// @Produce json
// @Success 200 {array} order.Order
// @Router /orders [get]
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.listOrders")
	defer span.End()

	h.respond(ctx, w, http.StatusOK, h.svc.ListOrders(ctx))
}

// getOrder retrieves an order by ID.
// @Summary Get order
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} order.Order
// @Failure 404 {object} errorResponse
// @Router /orders/{id} [get]
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.getOrder")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	o, err := h.svc.GetOrder(ctx, id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, o)
}

// updateOrder changes the status and/or products of an order.
// @Summary Update order
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param order body updateOrderRequest true "Changes"
// @Success 200 {object} order.Order
// @Failure 404 {object} errorResponse
// @Router /orders/{id} [put]
func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.updateOrder")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	var req updateOrderRequest
	if err := decode(r, &req); err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	upd := service.OrderUpdate{ProductIDs: req.ProductIDs}
	if req.Status != nil {
		upd.Status = *req.Status
	}
	o, err := h.svc.UpdateOrder(ctx, id, upd)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	h.respond(ctx, w, http.StatusOK, o)
}

// deleteOrder removes an order.
// @Summary Delete order
// @Tags orders
// @Param id path int true "Order ID"
// @Success 204
// @Failure 404 {object} errorResponse
// @Router /orders/{id} [delete]
func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "api.deleteOrder")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		h.fail(ctx, w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.DeleteOrder(ctx, id); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

// writeError maps service errors onto HTTP status codes.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, product.ErrExists), errors.Is(err, order.ErrExists):
		h.fail(ctx, w, http.StatusConflict, err)
	case errors.Is(err, product.ErrNotFound), errors.Is(err, order.ErrNotFound):
		h.fail(ctx, w, http.StatusNotFound, err)
	case errors.Is(err, product.ErrIDMismatch):
		h.fail(ctx, w, http.StatusBadRequest, err)
	default:
		h.log.Error(ctx, "request failed", "error", err)
		h.fail(ctx, w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, status int, err error) {
	h.respond(ctx, w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn(ctx, "write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.ExtractHeaders(r.Context(), r.Header)
		if h.tracer != nil {
			ctx = otel.InjectTracing(ctx, h.tracer)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", w.Header().Get("X-Request-ID"),
			"remote_addr", r.RemoteAddr,
		)
	})
}
