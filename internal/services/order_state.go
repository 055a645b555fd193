package services

import (
	"time"

	"restaurant_backend/internal/models"
)

// itemTransitions is the order-item state machine. Keys absent from the map
// (ready, declined, cancelled) are terminal.
var itemTransitions = map[string][]string{
	models.ItemStatusPending: {
		models.ItemStatusAccepted,
		models.ItemStatusDeclined,
	},
	models.ItemStatusAccepted: {
		models.ItemStatusPreparing,
		models.ItemStatusReady,
		models.ItemStatusCancelled,
		models.ItemStatusCancellationRequested,
	},
	models.ItemStatusPreparing: {
		models.ItemStatusReady,
		models.ItemStatusCancellationRequested,
	},
	// Resolution of a cancellation request: approval cancels, rejection
	// restores the recorded prior accepted-lineage state.
	models.ItemStatusCancellationRequested: {
		models.ItemStatusCancelled,
		models.ItemStatusAccepted,
		models.ItemStatusPreparing,
	},
}

// legalItemTransition reports whether the item machine allows from -> to.
func legalItemTransition(from, to string) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// orderMutable reports whether an order still accepts item-level mutations.
// Billed, completed and cancelled orders are frozen.
func orderMutable(order *models.Order) bool {
	return !order.Billed &&
		order.Status != models.OrderStatusCompleted &&
		order.Status != models.OrderStatusCancelled
}

// recomputeDerivedState re-derives the order's aggregate status and total from
// its items. Must run after every item mutation, before persisting the order
// row, with order.OrderItems fully loaded.
//
// Status: pending while any item is pending; otherwise ready once every
// accepted-lineage item (accepted/preparing/ready) is ready and at least one
// exists; otherwise preparing while at least one accepted-lineage item exists.
// When no rule applies (everything declined or cancelled) the current status is
// retained. Completed and cancelled are never derived, only set by their
// explicit operations. The total sums quantity x snapshot price over
// accepted-lineage items only.
//
// First transitions into preparing and ready stamp their timestamps; the
// stamps are never overwritten when a status is re-entered later.
func recomputeDerivedState(order *models.Order, now time.Time) {
	var (
		total        float64
		anyPending   bool
		lineageCount int
		readyCount   int
	)
	for i := range order.OrderItems {
		item := &order.OrderItems[i]
		if item.Status == models.ItemStatusPending {
			anyPending = true
		}
		if models.IsAcceptedLineage(item.Status) {
			lineageCount++
			total += float64(item.Quantity) * item.UnitPrice
			if item.Status == models.ItemStatusReady {
				readyCount++
			}
		}
	}
	order.TotalAmount = total

	if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusCancelled {
		return
	}

	switch {
	case anyPending:
		order.Status = models.OrderStatusPending
	case lineageCount > 0 && readyCount == lineageCount:
		order.Status = models.OrderStatusReady
		if order.ReadyAt == nil {
			order.ReadyAt = &now
		}
	case lineageCount > 0:
		order.Status = models.OrderStatusPreparing
		if order.PreparingAt == nil {
			order.PreparingAt = &now
		}
	}
}
