package httpserver

import (
	"context"
	"net/http"

	"catalog-pricing/internal/domain"
	"github.com/gin-gonic/gin"
)

// ProductService serves catalog reads, optionally priced for a user.
type ProductService interface {
	List(ctx context.Context, userID string) ([]domain.PricedProduct, error)
	Get(ctx context.Context, id, userID string) (*domain.PricedProduct, error)
}

type productHandler struct {
	svc ProductService
}

func (h productHandler) list(c *gin.Context) {
	userID := c.Query("userId")
	if userID != "" {
		if err := validID(userID, "userId"); err != nil {
			_ = c.Error(err)
			return
		}
	}

	products, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Products retrieved successfully", products)
}

func (h productHandler) get(c *gin.Context) {
	id := c.Param("id")
	if err := validID(id, "id"); err != nil {
		_ = c.Error(err)
		return
	}
	userID := c.Query("userId")
	if userID != "" {
		if err := validID(userID, "userId"); err != nil {
			_ = c.Error(err)
			return
		}
	}

	product, err := h.svc.Get(c.Request.Context(), id, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, "Product retrieved successfully", product)
}
