package catalog

import "strings"

// primitiveTags maps annotation spellings onto the engine's primitive tags.
var primitiveTags = map[string]string{
	"str":       "string",
	"string":    "string",
	"int":       "int",
	"float":     "float",
	"bool":      "bool",
	"list":      "list",
	"List":      "list",
	"dict":      "dict",
	"Dict":      "dict",
	"set":       "set",
	"Set":       "set",
	"tuple":     "tuple",
	"Tuple":     "tuple",
	"frozenset": "set",
	"bytes":     "string",
}

// NormalizeToken strips quoting and optional/generic wrappers from a raw
// annotation token: `Optional[Foo]` and `"Foo"` both come back as `Foo`.
// Generic arguments keep only the first parameter, which is all the chain
// walker can use anyway.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	token = strings.Trim(token, "\"'")
	token = strings.TrimSpace(token)

	for {
		open := strings.Index(token, "[")
		if open < 0 || !strings.HasSuffix(token, "]") {
			break
		}
		inner := token[open+1 : len(token)-1]
		if comma := topLevelComma(inner); comma >= 0 {
			inner = inner[:comma]
		}
		token = strings.TrimSpace(strings.Trim(strings.TrimSpace(inner), "\"'"))
		if token == "" {
			return ""
		}
	}

	if token == "None" || token == "Any" || token == "..." {
		return ""
	}
	return token
}

func topLevelComma(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ResolveToken turns a normalized annotation token into a TypeDescriptor
// against the merged catalog, the declaring module, and the external
// catalog. Tokens that resolve nowhere are kept literally rather than
// dropped; later resolution simply fails on them.
func ResolveToken(token, module string, aliases map[string]string, c *Catalog, allow Allowlist) TypeDescriptor {
	if token == "" {
		return Unknown
	}
	if tag, ok := primitiveTags[token]; ok {
		return Primitive(tag)
	}

	if strings.Contains(token, ".") {
		if first, rest, ok := strings.Cut(token, "."); ok {
			if target, found := aliases[first]; found {
				token = target + "." + rest
			}
		}
		if _, ok := c.Classes[token]; ok {
			return Internal(token)
		}
		if _, ok := c.ExternalClasses[token]; ok {
			return External(token)
		}
		if allow.Covers(token) {
			return External(token)
		}
		return Internal(token)
	}

	if local := module + "." + token; c.Known(local) {
		return Internal(local)
	}
	if target, ok := aliases[token]; ok {
		if _, found := c.ExternalClasses[target]; found {
			return External(target)
		}
		if allow.Covers(target) {
			return External(target)
		}
		return Internal(target)
	}
	return Internal(token)
}
