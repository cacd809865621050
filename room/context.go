// room/context.go
package room

import (
	"sync"

	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/state"
)

// Context 单个房间的进程内上下文：状态机、回合序号与结算防重。
// 由注册表统一创建与回收，避免按房间号散落的全局字典。
type Context struct {
	Code string

	mu           sync.Mutex
	machine      *state.Machine
	roundSeq     int64
	settledRound int64
}

func newContext(code string, status models.RoomStatus) *Context {
	return &Context{
		Code:    code,
		machine: state.NewMachine(status),
	}
}

func (c *Context) Machine() *state.Machine {
	return c.machine
}

// NextRound advances and returns the round sequence (StartGame).
func (c *Context) NextRound() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roundSeq++
	return c.roundSeq
}

func (c *Context) CurrentRound() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundSeq
}

// MarkSettled records the round as settled. Returns false when the round
// was already settled, so a duplicate settlement trigger becomes a no-op
// instead of a double deduction.
func (c *Context) MarkSettled(round int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if round <= c.settledRound {
		return false
	}
	c.settledRound = round
	return true
}

// Registry owns the per-room contexts: created on first touch, evicted on
// room deletion.
type Registry struct {
	mu sync.Mutex
	m  map[string]*Context
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]*Context)}
}

func (r *Registry) GetOrCreate(code string, status models.RoomStatus) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, ok := r.m[code]
	if !ok {
		ctx = newContext(code, status)
		r.m[code] = ctx
	}
	return ctx
}

func (r *Registry) Get(code string) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, ok := r.m[code]
	return ctx, ok
}

func (r *Registry) Evict(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, code)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
