package collection

import (
	"context"
	"log"

	"backend-eventmap/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// ActiveLookup reports the collection currently shown to readers.
type ActiveLookup interface {
	Get(ctx context.Context) (string, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, active ActiveLookup, adminMiddleware fiber.Handler) {
	r.Get("/", adminMiddleware, func(c *fiber.Ctx) error {
		names, err := svc.List(c.Context())
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(names)
	})

	r.Post("/", adminMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		created, err := svc.Create(c.Context(), body.Name)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Delete("/:name", adminMiddleware, func(c *fiber.Ctx) error {
		name := c.Params("name")
		if err := svc.Delete(c.Context(), name); err != nil {
			return apperr.HTTP(err)
		}

		stale := false
		if active != nil {
			current, err := active.Get(c.Context())
			if err != nil {
				log.Printf("active collection lookup failed after deleting %q: %v", name, err)
			}
			stale = current == name
		}
		return c.JSON(fiber.Map{"deleted": name, "active_stale": stale})
	})
}
