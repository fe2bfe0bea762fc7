// Package usecases - visualize.go resolves molecules for client-side rendering.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/chemed-go/internal/domain/entities"
	"github.com/0xcro3dile/chemed-go/internal/domain/ports"
)

// VisualizeUseCase fetches 3D structures and 2D depictions.
type VisualizeUseCase struct {
	structures ports.StructureService
	renderer   ports.MoleculeRenderer // optional
}

// NewVisualizeUseCase creates a VisualizeUseCase. renderer may be nil.
func NewVisualizeUseCase(structures ports.StructureService, renderer ports.MoleculeRenderer) *VisualizeUseCase {
	return &VisualizeUseCase{structures: structures, renderer: renderer}
}

// Structure looks up a compound by name.
func (uc *VisualizeUseCase) Structure(ctx context.Context, name string) (*entities.Structure, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: molecule", ErrMissingField)
	}
	return uc.structures.Lookup(ctx, name)
}

// Render draws a molecule given as SMILES.
func (uc *VisualizeUseCase) Render(ctx context.Context, smiles string) (*entities.Rendering, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	if uc.renderer == nil {
		return nil, fmt.Errorf("molecule renderer: %w", ports.ErrUnavailable)
	}
	return uc.renderer.Render(ctx, smiles)
}
