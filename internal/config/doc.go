// Package config manages user-level settings stored at ~/.extmgr/config.yaml.
// It provides functions to load, read, and write configuration keys such as
// the catalog URL, the install timeout, and the supported extension library
// range, plus a typed Settings snapshot with defaults applied.
package config
