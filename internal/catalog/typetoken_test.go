package catalog

import "testing"

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"str", "str"},
		{"  int  ", "int"},
		{"\"Connection\"", "Connection"},
		{"'Connection'", "Connection"},
		{"Optional[User]", "User"},
		{"Optional[\"User\"]", "User"},
		{"List[int]", "int"},
		{"Dict[str, User]", "str"},
		{"Union[User, None]", "User"},
		{"Callable[[int, str], bool]", "int"},
		{"Optional[List[User]]", "User"},
		{"None", ""},
		{"Any", ""},
		{"...", ""},
		{"Optional[None]", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeToken(tt.raw); got != tt.expected {
			t.Errorf("NormalizeToken(%q) = %q, expected %q", tt.raw, got, tt.expected)
		}
	}
}

func TestResolveTokenPrimitives(t *testing.T) {
	cat := New()
	tests := []struct {
		token    string
		expected TypeDescriptor
	}{
		{"str", Primitive("string")},
		{"bytes", Primitive("string")},
		{"List", Primitive("list")},
		{"frozenset", Primitive("set")},
		{"", Unknown},
	}
	for _, tt := range tests {
		got := ResolveToken(tt.token, "app", nil, cat, Allowlist{})
		if got != tt.expected {
			t.Errorf("ResolveToken(%q) = %v, expected %v", tt.token, got, tt.expected)
		}
	}
}

func TestResolveTokenDottedAndAliased(t *testing.T) {
	cat := New()
	cat.Classes["app.db.Connection"] = &ClassEntry{FQN: "app.db.Connection"}
	cat.ExternalClasses["pathlib.Path"] = &ExternalEntry{FQN: "pathlib.Path"}
	allow := Allowlist{Namespaces: []string{"pathlib", "logging"}}
	aliases := map[string]string{"db": "app.db"}

	tests := []struct {
		token    string
		expected TypeDescriptor
	}{
		{"db.Connection", Internal("app.db.Connection")},
		{"app.db.Connection", Internal("app.db.Connection")},
		{"pathlib.Path", External("pathlib.Path")},
		{"logging.Logger", External("logging.Logger")},
		{"some.unknown.Thing", Internal("some.unknown.Thing")},
	}
	for _, tt := range tests {
		got := ResolveToken(tt.token, "app.views", aliases, cat, allow)
		if got != tt.expected {
			t.Errorf("ResolveToken(%q) = %v, expected %v", tt.token, got, tt.expected)
		}
	}
}

func TestResolveTokenKeepsUnresolvedLiteral(t *testing.T) {
	cat := New()
	got := ResolveToken("Mystery", "app.views", nil, cat, Allowlist{})
	if got != Internal("Mystery") {
		t.Errorf("ResolveToken(Mystery) = %v, expected the literal kept as internal", got)
	}
}
