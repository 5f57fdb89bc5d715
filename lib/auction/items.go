// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auction

import "sync"

// ItemSource supplies the item name for each new auction.
type ItemSource interface {
	Next() string
}

// DefaultItems is the catalog used when none is configured.
var DefaultItems = []string{
	"Antique Clock",
	"Brass Telescope",
	"Ceramic Vase",
	"Oak Writing Desk",
	"Silver Candelabra",
	"Leather Atlas",
	"Glass Paperweight",
	"Pocket Watch",
	"Copper Kettle",
	"Marble Bust",
	"Woven Tapestry",
	"Jade Figurine",
}

// Catalog hands out item names in order, starting over at the end.
type Catalog struct {
	mu    sync.Mutex
	items []string
	next  int
}

// NewCatalog returns a catalog over items, or over DefaultItems when
// items is empty.
func NewCatalog(items []string) *Catalog {
	if len(items) == 0 {
		items = DefaultItems
	}
	return &Catalog{items: append([]string(nil), items...)}
}

func (c *Catalog) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := c.items[c.next]
	c.next = (c.next + 1) % len(c.items)
	return item
}
