package extension

import (
	"strconv"
	"strings"
)

// CompareVersions orders two package versions. The version code decides;
// version names are only consulted when the codes are equal. It returns -1, 0
// or 1.
func CompareVersions(aCode int, aName string, bCode int, bName string) int {
	switch {
	case aCode < bCode:
		return -1
	case aCode > bCode:
		return 1
	}
	return CompareVersionNames(aName, bName)
}

// CompareVersionNames compares dot-separated numeric version names component
// by component. Missing trailing components count as zero, so "1.2" equals
// "1.2.0". Non-numeric components also count as zero.
func CompareVersionNames(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := max(len(as), len(bs))
	for i := range n {
		x, y := component(as, i), component(bs, i)
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
	}
	return 0
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
