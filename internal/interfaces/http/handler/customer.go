package handler

import (
	"github.com/aquaflow/backend/internal/domain/customer"
	"github.com/aquaflow/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateCustomerRequest is the payload for opening a new service account
type CreateCustomerRequest struct {
	ServiceNumber string `json:"service_number" binding:"required,max=20"`
	Name          string `json:"name" binding:"required,max=200"`
	Route         string `json:"route" binding:"omitempty,max=20"`
	Address       string `json:"address" binding:"omitempty,max=300"`
	Phone         string `json:"phone" binding:"omitempty,max=30"`
	Email         string `json:"email" binding:"omitempty,email,max=200"`
}

// UpdateCustomerStatusRequest changes the service status of an account
type UpdateCustomerStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE SUSPENDED CLOSED"`
}

// CustomerHandler exposes customer account operations over HTTP
type CustomerHandler struct {
	BaseHandler
	customers customer.Repository
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customers customer.Repository) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// RegisterRoutes registers customer routes on the given router group
func (h *CustomerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	customers := rg.Group("/customers")
	{
		customers.POST("", h.Create)
		customers.GET("/:id", h.Get)
		customers.PUT("/:id/status", h.UpdateStatus)
	}
}

// Create opens a new active service account
func (h *CustomerHandler) Create(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cust, err := customer.NewCustomer(req.ServiceNumber, req.Name, req.Route, req.Address)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if req.Phone != "" || req.Email != "" {
		cust.SetContact(req.Phone, req.Email)
	}

	if err := h.customers.Save(c.Request.Context(), cust); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCustomerResponse(cust))
}

// Get returns a customer by ID, or by service number when the path segment
// is not a UUID.
func (h *CustomerHandler) Get(c *gin.Context) {
	idParam := c.Param("id")

	var (
		cust *customer.Customer
		err  error
	)
	if id, parseErr := uuid.Parse(idParam); parseErr == nil {
		cust, err = h.customers.FindByID(c.Request.Context(), id)
	} else {
		cust, err = h.customers.FindByServiceNumber(c.Request.Context(), idParam)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(cust))
}

// UpdateStatus transitions the account's service status
func (h *CustomerHandler) UpdateStatus(c *gin.Context) {
	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}
	id, err := uuid.Parse(idReq.ID)
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	var req UpdateCustomerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cust, err := h.customers.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch customer.Status(req.Status) {
	case customer.StatusSuspended:
		err = cust.Suspend()
	case customer.StatusActive:
		err = cust.Reconnect()
	case customer.StatusClosed:
		err = cust.Close()
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.customers.Save(c.Request.Context(), cust); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCustomerResponse(cust))
}

// toCustomerResponse maps a domain customer to its response DTO
func toCustomerResponse(c *customer.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:            c.ID.String(),
		ServiceNumber: c.ServiceNumber,
		Name:          c.Name,
		Route:         c.Route,
		Address:       c.Address,
		Phone:         c.Phone,
		Email:         c.Email,
		Status:        c.Status.String(),
		TimestampResponse: dto.TimestampResponse{
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
	}
}
