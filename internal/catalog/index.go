package catalog

import (
	"errors"
	"strings"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/tidwall/gjson"
)

var errMalformedIndex = errors.New("malformed catalog index")

// ParseIndex turns an index document into available extensions. Entries
// outside the package prefix are ignored; malformed entries are logged and
// skipped without affecting the rest.
func ParseIndex(data []byte, log logr.Logger) ([]extension.Available, error) {
	if !gjson.ValidBytes(data) {
		return nil, errMalformedIndex
	}
	apps := gjson.GetBytes(data, "applications")
	if !apps.IsArray() {
		return nil, errMalformedIndex
	}

	prefix := branding.PackagePrefix()
	var out []extension.Available
	apps.ForEach(func(_, app gjson.Result) bool {
		id := app.Get("id").String()
		if !strings.HasPrefix(id, prefix) {
			return true
		}
		entry, ok := parseApp(app)
		if !ok {
			log.V(1).Info("skipping malformed catalog entry", "pkg", id)
			return true
		}
		out = append(out, entry)
		return true
	})
	return out, nil
}

func parseApp(app gjson.Result) (extension.Available, bool) {
	id := app.Get("id")
	name := app.Get("name")
	if id.Type != gjson.String || name.Type != gjson.String || name.String() == "" {
		return extension.Available{}, false
	}

	pkg, ok := latestPackage(app.Get("packages"))
	if !ok {
		return extension.Available{}, false
	}

	return extension.Available{
		Name:        strings.TrimPrefix(name.String(), branding.LabelPrefix()),
		PkgName:     id.String(),
		VersionName: pkg.Get("version").String(),
		VersionCode: int(pkg.Get("versioncode").Int()),
		Lang:        extension.LangFromPackage(id.String()),
		APKName:     pkg.Get("apkname").String(),
		SHA256:      pkg.Get("hash").String(),
	}, true
}

// latestPackage picks the valid package with the highest versioncode.
func latestPackage(pkgs gjson.Result) (gjson.Result, bool) {
	var best gjson.Result
	found := false
	pkgs.ForEach(func(_, p gjson.Result) bool {
		if !validPackage(p) {
			return true
		}
		if !found || p.Get("versioncode").Int() > best.Get("versioncode").Int() {
			best, found = p, true
		}
		return true
	})
	return best, found
}

func validPackage(p gjson.Result) bool {
	version := p.Get("version")
	code := p.Get("versioncode")
	apk := p.Get("apkname")
	if version.Type != gjson.String || version.String() == "" {
		return false
	}
	if apk.Type != gjson.String || apk.String() == "" || strings.ContainsAny(apk.String(), `/\`) {
		return false
	}
	if code.Type != gjson.Number || code.Num != float64(int64(code.Num)) || code.Num < 0 {
		return false
	}
	if hash := p.Get("hash"); hash.Exists() && hash.Type != gjson.String {
		return false
	}
	return true
}
