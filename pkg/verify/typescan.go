package verify

import (
	"regexp"
	"strings"
)

// TypeReference is one identifier reference found in source text, along
// with the member access it was found on, if any (e.g. `Foo.Bar` yields
// TypeName="Foo", MemberName="Bar").
type TypeReference struct {
	TypeName   string
	MemberName string
}

// primitiveKeywords are excluded from type-reference results regardless of
// which bank matched them.
var primitiveKeywords = map[string]bool{
	"string": true, "int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "bool": true, "byte": true, "rune": true, "error": true,
	"void": true, "any": true, "object": true, "number": true, "boolean": true, "undefined": true,
	"null": true, "var": true, "let": true, "const": true,
}

// cFamilyPatterns matches C-family declaration/construction idioms: Go/C/C++/
// Java/C# style `new Foo(...)`, `Foo value = ...`, and dotted member access.
var cFamilyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bnew\s+([A-Z][A-Za-z0-9_]*)\s*\(`),
	regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*)\s+\*?\s*[a-zA-Z_][A-Za-z0-9_]*\s*=`),
	regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`),
}

// tsFamilyPatterns matches TypeScript/JavaScript idioms: type annotations,
// generic instantiation, and dotted member access.
var tsFamilyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`:\s*([A-Z][A-Za-z0-9_]*)(?:<[^>]*>)?\b`),
	regexp.MustCompile(`\bnew\s+([A-Z][A-Za-z0-9_]*)\s*\(`),
	regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`),
}

var tsExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true,
}

// UnverifiedTypesIn scans code for identifier references using the bank
// selected by filePath's extension, excludes primitive keywords, and
// deduplicates results by (typeName, memberName).
func UnverifiedTypesIn(code, filePath string) []TypeReference {
	patterns := cFamilyPatterns
	if isTSFamily(filePath) {
		patterns = tsFamilyPatterns
	}

	seen := make(map[TypeReference]bool)
	var refs []TypeReference

	for _, pat := range patterns {
		for _, m := range pat.FindAllStringSubmatch(code, -1) {
			typeName := m[1]
			if primitiveKeywords[strings.ToLower(typeName)] {
				continue
			}
			member := ""
			if len(m) > 2 {
				member = m[2]
			}
			ref := TypeReference{TypeName: typeName, MemberName: member}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

func isTSFamily(filePath string) bool {
	for ext := range tsExtensions {
		if strings.HasSuffix(filePath, ext) {
			return true
		}
	}
	return false
}
