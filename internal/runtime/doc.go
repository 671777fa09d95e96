// Package runtime instantiates the entry points an extension manifest
// declares. Extensions register their sources explicitly, either in-process
// through RegisterBuiltin or out-of-process through the exec describe
// protocol; nothing is discovered by reflection.
package runtime
