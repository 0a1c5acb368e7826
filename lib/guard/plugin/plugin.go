// Package plugin provides a Lua plugin system for custom moderation checks.
// It loads scripts that implement a "check" function taking a message context
// and returning a boolean (violation) and a string (reason).
package plugin

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/umputun/chat-guard/lib/modcheck"
)

// Check is a custom moderation check backed by a Lua script.
// Returns nil when the script doesn't flag the message.
type Check func(req modcheck.Request) *modcheck.Verdict

// Checker implements the Lua plugin engine for custom checks.
type Checker struct {
	vm       *lua.LState
	checkers map[string]*lua.LFunction
	mu       sync.Mutex // gopher-lua state is not thread-safe
}

// NewChecker creates a Checker with string helpers registered for scripts.
func NewChecker() *Checker {
	l := lua.NewState()
	c := &Checker{vm: l, checkers: make(map[string]*lua.LFunction)}
	c.registerHelpers()
	return c
}

// LoadScript loads a Lua script and registers it as a checker named after the file.
func (c *Checker) LoadScript(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.vm.DoFile(path); err != nil {
		return fmt.Errorf("failed to load lua script: %w", err)
	}

	checkFunc := c.vm.GetGlobal("check")
	if checkFunc.Type() != lua.LTFunction {
		return fmt.Errorf("script %s must define a 'check' function", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c.checkers[name] = checkFunc.(*lua.LFunction)
	return nil
}

// LoadDirectory loads all Lua scripts from a directory.
func (c *Checker) LoadDirectory(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return fmt.Errorf("failed to list lua scripts in %s: %w", dir, err)
	}
	for _, file := range files {
		if err := c.LoadScript(file); err != nil {
			return fmt.Errorf("failed to load script %s: %w", file, err)
		}
	}
	return nil
}

// GetAllChecks returns all loaded checks keyed by script name.
func (c *Checker) GetAllChecks() map[string]Check {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]Check)
	for name, checker := range c.checkers {
		result[name] = c.makeCheck(name, checker)
	}
	return result
}

func (c *Checker) makeCheck(name string, checker *lua.LFunction) Check {
	return func(req modcheck.Request) *modcheck.Verdict {
		c.mu.Lock()
		defer c.mu.Unlock()

		reqTable := c.vm.NewTable()
		reqTable.RawSetString("text", lua.LString(req.Text))
		reqTable.RawSetString("user_id", lua.LString(req.UserID))
		reqTable.RawSetString("user_name", lua.LString(req.UserName))
		reqTable.RawSetString("room_id", lua.LString(req.RoomID))

		if err := c.vm.CallByParam(lua.P{Fn: checker, NRet: 2, Protect: true}, reqTable); err != nil {
			// a broken script never blocks the message
			return nil
		}

		flagged := c.vm.ToBool(-2)
		reason := c.vm.ToString(-1)
		c.vm.Pop(2)

		if !flagged {
			return nil
		}
		return &modcheck.Verdict{
			Kind:     modcheck.PluginCheck,
			Severity: modcheck.Medium,
			Reason:   fmt.Sprintf("lua-%s: %s", name, reason),
		}
	}
}

// Close cleans up the Lua state.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vm.Close()
}

// registerHelpers exposes common string helpers to scripts.
func (c *Checker) registerHelpers() {
	c.vm.SetGlobal("count_substring", c.vm.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(strings.Count(l.CheckString(1), l.CheckString(2))))
		return 1
	}))
	c.vm.SetGlobal("contains", c.vm.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LBool(strings.Contains(strings.ToLower(l.CheckString(1)), strings.ToLower(l.CheckString(2)))))
		return 1
	}))
	c.vm.SetGlobal("to_lower", c.vm.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LString(strings.ToLower(l.CheckString(1))))
		return 1
	}))
	c.vm.SetGlobal("trim", c.vm.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LString(strings.TrimSpace(l.CheckString(1))))
		return 1
	}))
}
