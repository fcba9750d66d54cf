package event

import (
	"context"
	"strconv"

	"backend-eventmap/internal/routing"
	"backend-eventmap/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// ActiveLookup reports the collection currently shown to readers.
type ActiveLookup interface {
	Get(ctx context.Context) (string, error)
}

func eventID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid event id")
	}
	return id, nil
}

func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// RegisterRoutes mounts the admin event endpoints below a collection router,
// i.e. /:name/events and friends.
func RegisterRoutes(r fiber.Router, svc *Service, adminMiddleware fiber.Handler) {
	g := r.Group("/:name/events", adminMiddleware)

	g.Get("/", func(c *fiber.Ctx) error {
		events, err := svc.List(c.Context(), c.Params("name"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(events)
	})

	g.Post("/", func(c *fiber.Ctx) error {
		var in Input
		if err := bind(c, &in); err != nil {
			return err
		}
		created, err := svc.Create(c.Context(), c.Params("name"), in)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	g.Post("/bulk", func(c *fiber.Ctx) error {
		var items []Input
		if err := bind(c, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.HTTP(apperr.Validation("no events to import"))
		}
		res := svc.BulkCreate(c.Context(), c.Params("name"), items)
		if res.FailedIndex != nil {
			return c.Status(fiber.StatusMultiStatus).JSON(res)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	g.Put("/order", func(c *fiber.Ctx) error {
		var body struct {
			IDs []int64 `json:"ids"`
		}
		if err := bind(c, &body); err != nil {
			return err
		}
		if err := svc.Reorder(c.Context(), c.Params("name"), body.IDs); err != nil {
			return apperr.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	g.Get("/:id", func(c *fiber.Ctx) error {
		id, err := eventID(c)
		if err != nil {
			return err
		}
		e, err := svc.Get(c.Context(), c.Params("name"), id)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(e)
	})

	g.Put("/:id", func(c *fiber.Ctx) error {
		id, err := eventID(c)
		if err != nil {
			return err
		}
		var in Input
		if err := bind(c, &in); err != nil {
			return err
		}
		updated, err := svc.Update(c.Context(), c.Params("name"), id, in)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(updated)
	})

	g.Delete("/:id", func(c *fiber.Ctx) error {
		id, err := eventID(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.Context(), c.Params("name"), id); err != nil {
			return apperr.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	g.Post("/:id/favorite", func(c *fiber.Ctx) error {
		id, err := eventID(c)
		if err != nil {
			return err
		}
		favorite, err := svc.ToggleFavorite(c.Context(), c.Params("name"), id)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"id": id, "favorite": favorite})
	})
}

// RegisterPublicRoutes mounts the read-only endpoints that serve the active
// collection to map readers.
func RegisterPublicRoutes(r fiber.Router, svc *Service, active ActiveLookup, projector routing.Projector) {
	r.Get("/", func(c *fiber.Ctx) error {
		name, err := active.Get(c.Context())
		if err != nil {
			return apperr.HTTP(err)
		}
		events, err := svc.List(c.Context(), name)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"collection": name, "events": events})
	})

	r.Get("/route", func(c *fiber.Ctx) error {
		name, err := active.Get(c.Context())
		if err != nil {
			return apperr.HTTP(err)
		}
		mode := c.Query("mode", routing.ModeDriving)
		route, err := svc.Route(c.Context(), projector, name, mode, c.QueryBool("favorites"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(route)
	})
}
