package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/lake-levels/internal/catalog"
	"github.com/i474232898/lake-levels/internal/levels"
)

var validate = validator.New()

// CacheAdmin is the maintenance surface of the snapshot store.
type CacheAdmin interface {
	HasAny(lakeID string) bool
	Clear(lakeID string) error
	ClearAll() error
	TotalSize() (int64, error)
	FormattedSize() string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, lakes *catalog.Catalog, cache CacheAdmin, newService levels.ServiceFactory) {
	v1 := app.Group("/api/v1")

	v1.Get("/lakes", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"lakes": lakes.All()})
	})

	v1.Get("/lakes/:id/levels", func(c *fiber.Ctx) error {
		var req levelsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		lake, ok := lakes.Lookup(req.ID)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown lake")
		}

		svc := newService(req.period)
		svc.SelectLake(c.UserContext(), lake)
		st := svc.State()

		if st.Err != nil && st.Current == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, st.ErrorMessage())
		}

		resp := levelsResponse{State: st}
		if stats := svc.Stats(); stats.OK {
			resp.Stats = &stats
		}
		return c.JSON(resp)
	})

	v1.Get("/lakes/:id/cache", func(c *fiber.Ctx) error {
		id, err := lakeParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"lake": id, "cached": cache.HasAny(id)})
	})

	v1.Delete("/lakes/:id/cache", func(c *fiber.Ctx) error {
		id, err := lakeParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := cache.Clear(id); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear cache")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/cache", func(c *fiber.Ctx) error {
		size, err := cache.TotalSize()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute cache size")
		}
		return c.JSON(fiber.Map{
			"bytes":     size,
			"formatted": cache.FormattedSize(),
		})
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		if err := cache.ClearAll(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear cache")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type levelsResponse struct {
	levels.State
	Stats *levels.Stats `json:"stats,omitempty"`
}

// levelsQuery holds the path and query parameters of the levels endpoint.
type levelsQuery struct {
	ID     string `validate:"required,max=64"`
	Period string `validate:"omitempty,max=8"`

	period levels.Period
}

func (q *levelsQuery) bind(c *fiber.Ctx) error {
	q.ID = c.Params("id")
	q.Period = c.Query("period")

	if err := validate.Struct(q); err != nil {
		return err
	}

	q.period = levels.PeriodWeek
	if q.Period != "" {
		p, err := levels.ParsePeriod(q.Period)
		if err != nil {
			return err
		}
		q.period = p
	}
	return nil
}

type lakeQuery struct {
	ID string `validate:"required,max=64"`
}

func lakeParam(c *fiber.Ctx) (string, error) {
	q := lakeQuery{ID: c.Params("id")}
	if err := validate.Struct(q); err != nil {
		return "", err
	}
	return q.ID, nil
}
