// Package userdata manages the ~/.extmgr/ directory structure: the installed
// packages tree, the downloads spool, the trusted-signature file and the
// catalog freshness marker. It handles path resolution and initialization
// with the expected permissions.
package userdata
