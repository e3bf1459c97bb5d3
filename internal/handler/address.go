package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/orderdesk/internal/domain/address"
)

type addressRequest struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	Region       string `json:"region"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Type         string `json:"addressType"`
	IsDefault    bool   `json:"isDefault"`
}

func (r addressRequest) input() address.Input {
	return address.Input{
		FullName:     r.FullName,
		Phone:        r.Phone,
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		City:         r.City,
		Region:       r.Region,
		PostalCode:   r.PostalCode,
		Country:      r.Country,
		Type:         r.Type,
		IsDefault:    r.IsDefault,
	}
}

// Address routes only ever touch the caller's own address book.

func (h *Handler) listAddresses(c *gin.Context) {
	list, err := h.addresses.List(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]addressResponse, len(list))
	for i := range list {
		out[i] = toAddressResponse(&list[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) addAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.addresses.Add(c.Request.Context(), currentUser(c).ID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAddressResponse(a))
}

func (h *Handler) getAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.addresses.Get(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAddressResponse(a))
}

func (h *Handler) updateAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.addresses.Update(c.Request.Context(), currentUser(c).ID, id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAddressResponse(a))
}

func (h *Handler) deleteAddress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.addresses.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
