package routing

import (
	"backend-eventmap/internal/shared/apperr"
	"backend-eventmap/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

type routeRequest struct {
	Mode        string      `json:"mode"`
	Coordinates []geo.Point `json:"coordinates"`
}

// RegisterRoutes mounts the ad-hoc projection endpoint: the caller posts an
// ordered list of coordinates and gets the route through them.
func RegisterRoutes(r fiber.Router, projector Projector) {
	r.Post("/", func(c *fiber.Ctx) error {
		var req routeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Mode == "" {
			req.Mode = ModeDriving
		}
		for _, p := range req.Coordinates {
			if !p.Valid() {
				return apperr.HTTP(apperr.Validation("coordinate out of range", "coordinates"))
			}
		}

		route, err := projector.Route(c.Context(), req.Coordinates, req.Mode)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(route)
	})
}
