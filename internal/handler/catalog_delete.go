package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DeleteMovie handles DELETE /v1/movies/:id.  Only admins may delete a
// movie, and only while it has no shows; otherwise 403 or 409.  A
// successful deletion returns 204 No Content.
func (h *CatalogHandler) DeleteMovie(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Catalog.DeleteMovie(c.Request().Context(), p, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteTheatre handles DELETE /v1/theatres/:id.  It removes the
// theatre with its screens and seats when the caller is an admin or
// the theatre's owner.  Returns 204 on success, 404 if the theatre does
// not exist, 403 if it belongs to another owner and 409 while any of
// its screens still has shows.
func (h *CatalogHandler) DeleteTheatre(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Catalog.DeleteTheatre(c.Request().Context(), p, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
