package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"catalog-pricing/internal/domain"
	spsvc "catalog-pricing/internal/service/specialprice"
	"github.com/gin-gonic/gin"
)

// SpecialPriceService manages special-price profiles.
type SpecialPriceService interface {
	Create(ctx context.Context, in spsvc.CreateInput) (*domain.SpecialPriceProfile, error)
	List(ctx context.Context) ([]domain.SpecialPriceProfile, error)
	Get(ctx context.Context, id string) (*domain.SpecialPriceProfile, error)
	AddOrUpdateOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error)
	UpdateOverride(ctx context.Context, id string, override domain.PriceOverride) (*domain.SpecialPriceProfile, error)
	Delete(ctx context.Context, id string) error
	RemoveOverride(ctx context.Context, id, productID string) (*domain.SpecialPriceProfile, error)
}

type createSpecialPriceRequest struct {
	Name         string   `json:"name" binding:"required"`
	Email        string   `json:"email" binding:"required,email"`
	ProductID    string   `json:"productId" binding:"required,objectid"`
	SpecialPrice *float64 `json:"specialPrice" binding:"required,gt=0"`
}

type addSpecialPriceRequest struct {
	ID           string   `json:"id" binding:"required,objectid"`
	ProductID    string   `json:"productId" binding:"required,objectid"`
	SpecialPrice *float64 `json:"specialPrice" binding:"required,gt=0"`
}

type updateSpecialPriceRequest struct {
	ProductID    string   `json:"productId" binding:"required,objectid"`
	SpecialPrice *float64 `json:"specialPrice" binding:"required,gt=0"`
}

type removeSpecialPriceRequest struct {
	ProductID string `json:"productId"`
}

type specialPriceHandler struct {
	svc SpecialPriceService
}

func (h specialPriceHandler) list(c *gin.Context) {
	profiles, err := h.svc.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Users retrieved successfully", profiles)
}

func (h specialPriceHandler) get(c *gin.Context) {
	id := c.Param("id")
	if err := validID(id, "id"); err != nil {
		_ = c.Error(err)
		return
	}
	profile, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Special prices retrieved successfully", profile)
}

func (h specialPriceHandler) create(c *gin.Context) {
	var req createSpecialPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err, "name, email, productId, specialPrice are required"))
		return
	}

	profile, err := h.svc.Create(c.Request.Context(), spsvc.CreateInput{
		Name:         req.Name,
		Email:        req.Email,
		ProductID:    req.ProductID,
		SpecialPrice: *req.SpecialPrice,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusCreated, "Special price created successfully", profile)
}

func (h specialPriceHandler) addOrUpdate(c *gin.Context) {
	var req addSpecialPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err, "id, productId and specialPrice are required"))
		return
	}

	profile, err := h.svc.AddOrUpdateOverride(c.Request.Context(), req.ID, domain.PriceOverride{
		ProductID:    req.ProductID,
		SpecialPrice: *req.SpecialPrice,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Special price updated successfully", profile)
}

func (h specialPriceHandler) update(c *gin.Context) {
	id := c.Param("id")
	if err := validID(id, "id"); err != nil {
		_ = c.Error(err)
		return
	}
	var req updateSpecialPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err, "productId and specialPrice are required"))
		return
	}

	profile, err := h.svc.UpdateOverride(c.Request.Context(), id, domain.PriceOverride{
		ProductID:    req.ProductID,
		SpecialPrice: *req.SpecialPrice,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Special price updated successfully", profile)
}

func (h specialPriceHandler) delete(c *gin.Context) {
	id := c.Param("id")
	if err := validID(id, "id"); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Special price deleted successfully", nil)
}

// removeProduct drops one override. productId comes from the JSON body, or
// from the query string for clients that cannot send a DELETE body.
func (h specialPriceHandler) removeProduct(c *gin.Context) {
	id := c.Param("id")
	if err := validID(id, "id"); err != nil {
		_ = c.Error(err)
		return
	}
	var req removeSpecialPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(bindError(err, "id, productId are required"))
		return
	}
	if req.ProductID == "" {
		req.ProductID = c.Query("productId")
	}
	if req.ProductID == "" {
		_ = c.Error(domain.Invalidf("id, productId are required"))
		return
	}
	if err := validID(req.ProductID, "productId"); err != nil {
		_ = c.Error(err)
		return
	}

	if _, err := h.svc.RemoveOverride(c.Request.Context(), id, req.ProductID); err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Special price deleted successfully", nil)
}
