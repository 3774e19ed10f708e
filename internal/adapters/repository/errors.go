package repository

import (
	"fmt"

	"github.com/okian/tipjar/internal/domain/model"
)

// ErrProfileNotFound is returned by Directory lookups.
var ErrProfileNotFound = fmt.Errorf("profile %w", model.ErrNotFound)
