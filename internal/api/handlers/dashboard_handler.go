package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sentience/backend/internal/dashboard"
)

type DashboardHandler struct {
	service *dashboard.Service
}

func NewDashboardHandler(service *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{
		service: service,
	}
}

func (h *DashboardHandler) GetMeta(c *fiber.Ctx) error {
	return c.JSON(h.service.Meta())
}

// GetTimescales lists the granularities offered for the requested range.
func (h *DashboardHandler) GetTimescales(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err, "Invalid filter")
	}
	return c.JSON(fiber.Map{
		"timescales": h.service.Timescales(f),
	})
}

func (h *DashboardHandler) GetTimeSeries(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err, "Invalid filter")
	}
	g, err := parseGranularity(c)
	if err != nil {
		return respondError(c, err, "Invalid granularity")
	}

	buckets, err := h.service.TimeSeries(c.UserContext(), f, g)
	if err != nil {
		return respondError(c, err, "Failed to compute time series")
	}

	return c.JSON(fiber.Map{
		"granularity": g,
		"buckets":     buckets,
	})
}

func (h *DashboardHandler) GetKPIs(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err, "Invalid filter")
	}
	g, err := parseGranularity(c)
	if err != nil {
		return respondError(c, err, "Invalid granularity")
	}

	kpis, err := h.service.KPIs(c.UserContext(), f, g)
	if err != nil {
		return respondError(c, err, "Failed to compute KPIs")
	}
	return c.JSON(kpis)
}

func (h *DashboardHandler) GetNgrams(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err, "Invalid filter")
	}
	labels, err := parseLabels(c, false)
	if err != nil {
		return respondError(c, err, "Invalid labels")
	}
	n, err := parseInt(c, "n", 2)
	if err != nil {
		return respondError(c, err, "Invalid n")
	}
	top, err := parseInt(c, "top", 0)
	if err != nil {
		return respondError(c, err, "Invalid top")
	}

	ngrams, err := h.service.Ngrams(c.UserContext(), f, dashboard.NgramQuery{
		Labels: labels,
		N:      n,
		Top:    top,
	})
	if err != nil {
		return respondError(c, err, "Failed to rank n-grams")
	}

	return c.JSON(fiber.Map{
		"n":      n,
		"ngrams": ngrams,
	})
}

func (h *DashboardHandler) GetEvidence(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err, "Invalid filter")
	}
	q, err := parseEvidenceQuery(c)
	if err != nil {
		return respondError(c, err, "Invalid evidence query")
	}
	limit, err := parseInt(c, "limit", 0)
	if err != nil {
		return respondError(c, err, "Invalid limit")
	}

	page, err := h.service.Evidence(c.UserContext(), f, q, limit)
	if err != nil {
		return respondError(c, err, "Failed to search evidence")
	}
	return c.JSON(page)
}

func (h *DashboardHandler) GetRatings(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return respondError(c, err, "Invalid filter")
	}

	dist, err := h.service.Distributions(c.UserContext(), f)
	if err != nil {
		return respondError(c, err, "Failed to compute distributions")
	}
	return c.JSON(dist)
}
