package ludo

import (
	"math/rand/v2"
	"sync"
)

const Faces = 6

type Dice interface {
	Roll() int
}

// RandomDice is safe for concurrent use by every ludo room of the process.
type RandomDice struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomDice(seed1, seed2 uint64) *RandomDice {
	return &RandomDice{rnd: rand.New(rand.NewPCG(seed1, seed2))} //nolint: gosec // it's ok
}

func (that *RandomDice) Roll() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rnd.IntN(Faces) + 1
}

// ScriptedDice replays a fixed sequence of values, cycling when exhausted.
type ScriptedDice struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewScriptedDice(values ...int) *ScriptedDice {
	return &ScriptedDice{values: values}
}

func (that *ScriptedDice) Roll() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	value := that.values[that.next%len(that.values)]
	that.next++

	return value
}
