package provider

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// compareVersions orders game versions semantically. Strings that are not
// versions sort after real versions, lexically among themselves.
func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// sortNewestFirst sorts versions in place, newest first.
func sortNewestFirst(versions []string) {
	slices.SortStableFunc(versions, func(a, b string) int { return compareVersions(b, a) })
}

// Family returns the "major.minor" family of a version ("1.21.4" -> "1.21").
func Family(version string) string {
	core, _, _ := strings.Cut(version, "-")
	parts := strings.SplitN(core, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// groupByFamily groups versions by family, newest family first.
func groupByFamily(versions []string) []VersionGroup {
	byFamily := make(map[string][]string)
	for _, v := range versions {
		f := Family(v)
		byFamily[f] = append(byFamily[f], v)
	}
	return sortedGroups(byFamily)
}

func sortedGroups(byFamily map[string][]string) []VersionGroup {
	families := make([]string, 0, len(byFamily))
	for f := range byFamily {
		families = append(families, f)
	}
	sortNewestFirst(families)

	groups := make([]VersionGroup, 0, len(families))
	for _, f := range families {
		vs := slices.Clone(byFamily[f])
		sortNewestFirst(vs)
		groups = append(groups, VersionGroup{Family: f, Versions: vs})
	}
	return groups
}
