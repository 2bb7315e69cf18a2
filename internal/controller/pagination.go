package controller

import "github.com/gofiber/fiber/v2"

type pageParams struct {
	Skip   int
	Take   int
	Search string
}

// parsePageParams reads skip/take/search query parameters. Take is capped at
// 100 and defaults to 20.
func parsePageParams(c *fiber.Ctx) pageParams {
	p := pageParams{
		Skip:   c.QueryInt("skip", 0),
		Take:   c.QueryInt("take", 20),
		Search: c.Query("search"),
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Take <= 0 {
		p.Take = 20
	}
	if p.Take > 100 {
		p.Take = 100
	}
	return p
}
