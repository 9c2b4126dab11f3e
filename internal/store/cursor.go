package store

import (
	"context"
	"strconv"
)

const cursorKey = "current_date_offset"

// Cursor is the persisted day offset from today that the widget displays.
type Cursor struct {
	kv KV
}

func NewCursor(kv KV) *Cursor {
	return &Cursor{kv: kv}
}

// Offset returns the stored offset, 0 when unset or unreadable.
func (c *Cursor) Offset(ctx context.Context) (int, error) {
	data, ok, err := c.kv.Get(ctx, cursorKey)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (c *Cursor) Set(ctx context.Context, offset int) error {
	return c.kv.Set(ctx, cursorKey, []byte(strconv.Itoa(offset)))
}

// Move adds delta to the stored offset and returns the new value.
func (c *Cursor) Move(ctx context.Context, delta int) (int, error) {
	cur, err := c.Offset(ctx)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	if err := c.Set(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}

func (c *Cursor) Next(ctx context.Context) (int, error) {
	return c.Move(ctx, 1)
}

func (c *Cursor) Prev(ctx context.Context) (int, error) {
	return c.Move(ctx, -1)
}

func (c *Cursor) Reset(ctx context.Context) error {
	return c.Set(ctx, 0)
}
