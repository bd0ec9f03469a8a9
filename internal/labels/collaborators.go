package labels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labeltrack-backend/internal/labelcodes"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CodeGenerator allocates label codes that are unique against the store.
type CodeGenerator interface {
	NewUniqueCode(ctx context.Context, exists labelcodes.ExistsFunc) (string, error)
	NewBatchCodes(ctx context.Context, n int, exists labelcodes.ExistsFunc) ([]string, error)
}

// SKU is the catalog context returned alongside a scanned label.
type SKU struct {
	ID   uuid.UUID      `json:"id"`
	Name string         `json:"name,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// SKUCatalog resolves SKU ids owned by the catalog service.
type SKUCatalog interface {
	LookupSKU(ctx context.Context, skuID uuid.UUID) (*SKU, error)
}

// LocationPolicy decides whether a free-text location may be assigned.
type LocationPolicy interface {
	Check(location string) error
}

// Metrics receives lifecycle observations. *metrics.LifecycleMetrics satisfies it.
type Metrics interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	AddLabelsGenerated(n int)
}

// Clock returns the current time.
type Clock func() time.Time

type allowlistPolicy struct {
	allowed map[string]struct{}
}

// NewAllowlistPolicy restricts assignments to the given locations, compared
// case-insensitively. An empty list returns nil, which keeps assignment
// permissive.
func NewAllowlistPolicy(locations []string) LocationPolicy {
	allowed := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		loc = strings.ToLower(strings.TrimSpace(loc))
		if loc != "" {
			allowed[loc] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return &allowlistPolicy{allowed: allowed}
}

func (p *allowlistPolicy) Check(location string) error {
	if _, ok := p.allowed[strings.ToLower(strings.TrimSpace(location))]; !ok {
		return fmt.Errorf("location %q is not in the allowed list", location)
	}
	return nil
}
