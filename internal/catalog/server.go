package catalog

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/logging"
)

// Handler exposes a Searcher over HTTP
type Handler struct {
	logger   zerolog.Logger
	searcher Searcher
	pageSize int
}

// NewHandler creates the catalog API handler. pageSize is used when a request
// does not pass one.
func NewHandler(logger zerolog.Logger, searcher Searcher, pageSize int) *Handler {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Handler{
		logger:   logging.Component(logger, "server"),
		searcher: searcher,
		pageSize: pageSize,
	}
}

// NewServer builds the fiber app serving the catalog API
func NewServer(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	RegisterHealthRoutes(app)
	h.Register(app)

	return app
}

func RegisterHealthRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

// Register mounts the catalog routes
func (h *Handler) Register(app *fiber.App) {
	app.Get("/api/videos", h.listVideos)
}

func (h *Handler) listVideos(c *fiber.Ctx) error {
	q := Query{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pagesize", h.pageSize),
	}

	page, err := h.searcher.Search(c.UserContext(), q)
	if err != nil {
		h.logger.Error().Err(err).Str("search", q.Search).Int("page", q.Page).Msg("catalog search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
	}

	h.logger.Debug().
		Str("search", q.Search).
		Int("page", page.CurrentPage).
		Int("results", page.TotalResults).
		Msg("catalog search")

	return c.JSON(page)
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(c *fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}
