package service

import (
	"fmt"

	"collection-service/internal/entity"
)

// UsedNumbers collects every item number ever issued on a job, soft-deleted
// ones included.
func UsedNumbers(items []entity.JobItem, extra ...string) map[string]struct{} {
	used := make(map[string]struct{}, len(items)+len(extra))
	for _, it := range items {
		used[it.ItemNumber] = struct{}{}
	}
	for _, n := range extra {
		if n != "" {
			used[n] = struct{}{}
		}
	}
	return used
}

// NextItemNumber returns the first <jobCode>-<NN> not in used.
func NextItemNumber(jobCode string, used map[string]struct{}) string {
	for n := 1; ; n++ {
		candidate := entity.FormatItemNumber(jobCode, n)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}

// ExpandItem splits a batch of quantity q into q items of quantity 1.
// The first keeps the batch's id and number; the rest are unpersisted and
// numbered with NextItemNumber. used is updated with the new numbers.
func ExpandItem(item entity.JobItem, jobCode string, used map[string]struct{}) ([]entity.JobItem, error) {
	if item.Quantity < 1 {
		return nil, entity.NewFieldError(entity.ErrInvalidQuantity, "quantity", fmt.Sprintf("%d is below 1", item.Quantity))
	}

	first := item.Clone()
	first.Quantity = 1
	out := make([]entity.JobItem, 0, item.Quantity)
	out = append(out, first)

	used[item.ItemNumber] = struct{}{}
	for i := 1; i < item.Quantity; i++ {
		c := item.Clone()
		c.ID = 0
		c.Quantity = 1
		c.ItemNumber = NextItemNumber(jobCode, used)
		used[c.ItemNumber] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
