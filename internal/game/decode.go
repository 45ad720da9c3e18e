package game

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
)

// ActionType reads the "type" discriminant of a raw action.
func ActionType(raw json.RawMessage) (string, error) {
	var envelope struct {
		Type string `json:"type"`
	}

	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty action", apperror.ErrInvalidAction)
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("%w: malformed action: %w", apperror.ErrInvalidAction, err)
	}

	if envelope.Type == "" {
		return "", fmt.Errorf("%w: action type is required", apperror.ErrInvalidAction)
	}

	return envelope.Type, nil
}

func Unsupported(actionType string) error {
	return fmt.Errorf("%w: unsupported action %q", apperror.ErrInvalidAction, actionType)
}
