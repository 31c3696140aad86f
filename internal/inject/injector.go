// Package inject places formatted text into the focused window.
package inject

import "context"

// Injector delivers text to whatever currently holds input focus. Delivery
// is best-effort: the controller logs failures but never fails the cycle on
// them.
type Injector interface {
	Inject(ctx context.Context, text string) error
}
