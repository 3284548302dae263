package product

import (
	"net/http"

	"mutaengine_back_end/internal/middleware"
	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	catalog *services.CatalogService
}

func NewProductHandler(catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// @Summary Liste du catalogue
// @Tags products
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/products/ [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Products fetched successfully", products)
}

// @Summary Détail d'un produit
// @Tags products
// @Produce json
// @Param id path string true "id"
// @Security BearerAuth
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/products/{id}/ [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Product fetched successfully", p)
}

// @Summary Crée un produit
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/products/ [post]
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var input services.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.Validationf("%s", err.Error()))
		return
	}

	p, err := h.catalog.Create(c.Request.Context(), actor, input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusCreated, "Product added successfully", p)
}

// UpdateProduct sert PUT et PATCH. La mise à jour reste partielle : seul PUT exige title et price.
// @Summary Met à jour un produit
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "id"
// @Security BearerAuth
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/products/{id}/ [put]
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var input services.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.Validationf("%s", err.Error()))
		return
	}

	full := c.Request.Method == http.MethodPut
	p, err := h.catalog.Update(c.Request.Context(), actor, c.Param("id"), input, full)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Product updated successfully", p)
}

// @Summary Supprime un produit
// @Tags products
// @Produce json
// @Param id path string true "id"
// @Security BearerAuth
// @Success 204
// @Failure 400 {object} utils.Envelope
// @Router /api/products/{id}/ [delete]
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	if err := h.catalog.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusNoContent, "Product deleted successfully", nil)
}
