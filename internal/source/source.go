package source

import "context"

// Source is a content-source capability object. Its id is stable across
// restarts and unique within a Directory.
type Source interface {
	ID() int64
	Name() string
}

// CatalogueSource is a Source that serves content in a specific language.
type CatalogueSource interface {
	Source
	Lang() string
}

// Factory produces one or more sources. An extension entry point may be a
// Source or a Factory.
type Factory interface {
	CreateSources() ([]Source, error)
}

// Configurable is implemented by sources that accept user preferences.
type Configurable interface {
	Source
	Configure(ctx context.Context, prefs map[string]string) error
}

// LoginCapable is implemented by sources that require an account.
type LoginCapable interface {
	Source
	Login(ctx context.Context, username, password string) error
}
