package extension

// LoadResult is the outcome of loading one package. It is one of
// LoadSuccess, LoadUntrusted or LoadFailure.
type LoadResult interface {
	Package() string
	loadResult()
}

// LoadSuccess carries a fully instantiated extension.
type LoadSuccess struct {
	Extension Installed
}

// LoadUntrusted reports a package whose signature is not trusted.
type LoadUntrusted struct {
	Extension Untrusted
}

// LoadFailure reports a package that could not be loaded.
type LoadFailure struct {
	PkgName string
	Err     error
}

func (r LoadSuccess) Package() string   { return r.Extension.PkgName }
func (r LoadUntrusted) Package() string { return r.Extension.PkgName }
func (r LoadFailure) Package() string   { return r.PkgName }

func (LoadSuccess) loadResult()   {}
func (LoadUntrusted) loadResult() {}
func (LoadFailure) loadResult()   {}

func (r LoadFailure) Error() string {
	return r.PkgName + ": " + r.Err.Error()
}

func (r LoadFailure) Unwrap() error { return r.Err }
