package collection

import "time"

type Collection struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
