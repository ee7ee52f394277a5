package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sentience/backend/internal/analytics"
	"github.com/sentience/backend/internal/dashboard"
	"github.com/sentience/backend/internal/review"
)

const dateLayout = "2006-01-02"

var errInvalidParam = errors.New("invalid parameter")

// parseFilter reads from, to and the repeatable location parameter.
func parseFilter(c *fiber.Ctx) (dashboard.Filter, error) {
	var f dashboard.Filter

	from, err := parseDate(c.Query("from"))
	if err != nil {
		return f, fmt.Errorf("%w: from: %v", errInvalidParam, err)
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		return f, fmt.Errorf("%w: to: %v", errInvalidParam, err)
	}
	f.From, f.To = from, to
	f.Locations = queryList(c, "location")
	return f, nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

// queryList collects a repeatable parameter. Each occurrence may also hold a
// comma-separated list.
func queryList(c *fiber.Ctx, key string) []string {
	var out []string
	for _, raw := range c.Context().QueryArgs().PeekMulti(key) {
		for _, v := range strings.Split(string(raw), ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func parseGranularity(c *fiber.Ctx) (review.Granularity, error) {
	s := c.Query("granularity")
	if s == "" {
		return review.Daily, nil
	}
	return review.ParseGranularity(s)
}

// parseLabels reads the labels parameter. allByDefault selects every label
// when the parameter is absent.
func parseLabels(c *fiber.Ctx, allByDefault bool) ([]review.Label, error) {
	names := queryList(c, "labels")
	if len(names) == 0 {
		if allByDefault {
			return review.Labels, nil
		}
		return nil, nil
	}
	return review.ParseLabels(names)
}

func parseInt(c *fiber.Ctx, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidParam, key)
	}
	return v, nil
}

func parseEvidenceQuery(c *fiber.Ctx) (analytics.EvidenceQuery, error) {
	sort, err := analytics.ParseSortMode(c.Query("sort"))
	if err != nil {
		return analytics.EvidenceQuery{}, err
	}
	labels, err := parseLabels(c, true)
	if err != nil {
		return analytics.EvidenceQuery{}, err
	}
	return analytics.EvidenceQuery{
		Text:   c.Query("q"),
		Sort:   sort,
		Labels: labels,
	}, nil
}
