package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/youruser/certbatch/internal/apperr"
	"github.com/youruser/certbatch/internal/certgen"
	"github.com/youruser/certbatch/internal/fonts"
	"github.com/youruser/certbatch/internal/logging"
)

// FontCatalog lists fonts for the picker.
type FontCatalog interface {
	List(ctx context.Context) ([]fonts.CatalogFont, error)
}

type Handler struct {
	gen     *certgen.Generator
	catalog FontCatalog
	log     logging.Logger
}

func NewHandler(gen *certgen.Generator, catalog FontCatalog, log logging.Logger) *Handler {
	return &Handler{gen: gen, catalog: catalog, log: log}
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listFonts proxies the font catalog.
func (h *Handler) listFonts(c *gin.Context) {
	list, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// generate streams the whole batch as a zip attachment.
func (h *Handler) generate(c *gin.Context) {
	ctx := c.Request.Context()
	job, _, ok := h.prepare(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", certgen.ArchiveName))
	c.Status(http.StatusOK)

	rep, err := job.Stream(ctx, c.Writer)
	if err != nil {
		// Headers are gone already; all that is left is to log and drop the connection.
		_ = c.Error(err)
		h.log.Error(ctx, "batch stream aborted", "request_id", c.GetString(requestIDKey), "error", err)
		return
	}
	h.log.Info(ctx, "batch sent",
		"request_id", c.GetString(requestIDKey),
		"total", rep.Total,
		"rendered", len(rep.Rendered),
		"skipped", len(rep.Skipped),
	)
}

// preview renders a single certificate.
func (h *Handler) preview(c *gin.Context) {
	job, form, ok := h.prepare(c)
	if !ok {
		return
	}
	png, err := job.Preview(strings.TrimSpace(form.Name))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) prepare(c *gin.Context) (*certgen.Job, *generateForm, bool) {
	var form generateForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
		h.fail(c, bindError("api.bind", err))
		return nil, nil, false
	}
	req, err := form.request()
	if err != nil {
		h.fail(c, err)
		return nil, nil, false
	}
	job, err := h.gen.Prepare(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return nil, nil, false
	}
	return job, &form, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed",
			"request_id", c.GetString(requestIDKey), "kind", apperr.KindOf(err), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}
