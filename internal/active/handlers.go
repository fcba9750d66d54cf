package active

import (
	"backend-eventmap/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, adminMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		name, err := svc.Get(c.Context())
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"name": name})
	})

	r.Put("/", adminMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		name, err := svc.Set(c.Context(), body.Name)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"name": name})
	})
}
