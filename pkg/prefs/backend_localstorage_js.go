//go:build js && wasm

package prefs

import (
	"errors"
	"fmt"
	"syscall/js"
)

// BrowserStorage is the page's window.localStorage.
type BrowserStorage struct {
	v js.Value
}

// NewBrowserStorage returns the page's localStorage, or an error when the
// host has none (workers, node).
func NewBrowserStorage() (*BrowserStorage, error) {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return nil, errors.New("localStorage is not available")
	}

	return &BrowserStorage{v: ls}, nil
}

func (s *BrowserStorage) GetItem(key string) (value string, ok bool, err error) {
	defer recoverJS(&err)

	item := s.v.Call("getItem", key)
	if item.IsNull() || item.IsUndefined() {
		return "", false, nil
	}

	return item.String(), true, nil
}

// SetItem fails with the browser's QuotaExceededError when storage is full.
func (s *BrowserStorage) SetItem(key, value string) (err error) {
	defer recoverJS(&err)

	s.v.Call("setItem", key, value)

	return nil
}

func (s *BrowserStorage) RemoveItem(key string) (err error) {
	defer recoverJS(&err)

	s.v.Call("removeItem", key)

	return nil
}

// recoverJS turns a thrown JS exception into an error.
func recoverJS(err *error) {
	r := recover()
	if r == nil {
		return
	}

	if jsErr, ok := r.(js.Error); ok {
		*err = fmt.Errorf("localStorage: %w", jsErr)

		return
	}

	panic(r)
}
