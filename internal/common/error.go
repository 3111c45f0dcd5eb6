package common

import "fmt"

var (
	ErrBrowserNotFound         = fmt.Errorf("browser executable not found")
	ErrNotLoggedIn             = fmt.Errorf("not logged in")
	ErrNoSession               = fmt.Errorf("no persisted session")
	ErrCacheMiss               = fmt.Errorf("cache miss")
	ErrSearchHasAlreadyStarted = fmt.Errorf("search has already started")
)
