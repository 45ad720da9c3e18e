package game

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/campus-arena/internal/apperror"
	"github.com/rocketscienceinc/campus-arena/internal/entity"
)

// Catalog holds the rule module of every playable game type.
type Catalog struct {
	mu    sync.RWMutex
	rules map[entity.GameType]Rules
}

func NewCatalog(rules ...Rules) *Catalog {
	catalog := &Catalog{rules: make(map[entity.GameType]Rules, len(rules))}
	for _, r := range rules {
		catalog.Register(r)
	}

	return catalog
}

// Register adds a rule module. Panics on duplicate game types.
func (that *Catalog) Register(rules Rules) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, exists := that.rules[rules.Type()]; exists {
		panic(fmt.Sprintf("rules for %q already registered", rules.Type()))
	}

	that.rules[rules.Type()] = rules
}

func (that *Catalog) Get(gameType entity.GameType) (Rules, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	rules, ok := that.rules[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownGameType, gameType)
	}

	return rules, nil
}

// DecodeAction dispatches a raw client action to the decoder of the room's game type.
func (that *Catalog) DecodeAction(gameType entity.GameType, raw json.RawMessage) (Action, error) {
	rules, err := that.Get(gameType)
	if err != nil {
		return nil, err
	}

	action, err := rules.DecodeAction(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s action: %w", gameType, err)
	}

	return action, nil
}

func (that *Catalog) Types() []entity.GameType {
	that.mu.RLock()
	defer that.mu.RUnlock()

	types := make([]entity.GameType, 0, len(that.rules))
	for gameType := range that.rules {
		types = append(types, gameType)
	}

	return types
}
