package generator

import (
	"unicode"

	"github.com/origadmin/attrimap/internal/model"
)

// FuncNames names the functions generated for the groups of one package.
// A group is named <prefix><Target>; when that name is shared with another
// group or already declared in the package, the group key is appended.
func FuncNames(prefix string, groups []*model.Group, declared map[string]bool) []string {
	counts := make(map[string]int, len(groups))
	for _, grp := range groups {
		counts[baseName(prefix, grp)]++
	}
	names := make([]string, len(groups))
	for i, grp := range groups {
		name := baseName(prefix, grp)
		if counts[name] > 1 || declared[name] {
			name += "_" + grp.Key
		}
		names[i] = name
	}
	return names
}

func baseName(prefix string, grp *model.Group) string {
	return prefix + capitalize(grp.Target.Name)
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if unicode.IsUpper(runes[0]) {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
