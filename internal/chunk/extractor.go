package chunk

// Symbol name extraction. Each language has its own lookup rules; the
// JS/TS path also unwraps export statements and variable initializers
// around arrow functions so `export const handler = async () => {}`
// yields "handler" typed as a function.

// extractName returns the declared name for a semantic node, or "".
func extractName(n *Node, source []byte, lang Language) string {
	switch lang {
	case LanguageGo:
		return extractGoName(n, source)
	case LanguageTypeScript, LanguageTSX, LanguageJavaScript, LanguageJSX:
		return extractJSName(n, source)
	case LanguagePython:
		return extractPythonName(n, source)
	default:
		if child := n.FindChildByType("identifier"); child != nil {
			return child.Content(source)
		}
	}
	return ""
}

func extractGoName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		if child := n.FindChildByType("identifier"); child != nil {
			return child.Content(source)
		}
	case "method_declaration":
		// Method names are field_identifier, not identifier.
		if child := n.FindChildByType("field_identifier"); child != nil {
			return child.Content(source)
		}
	case "type_declaration":
		if spec := n.FindChildByType("type_spec"); spec != nil {
			if id := spec.FindChildByType("type_identifier"); id != nil {
				return id.Content(source)
			}
		}
	case "const_declaration":
		// const Name = v, or a grouped const block; first name wins.
		if spec := n.FindChildByType("const_spec"); spec != nil {
			if id := spec.FindChildByType("identifier"); id != nil {
				return id.Content(source)
			}
		}
	case "var_declaration":
		if spec := n.FindChildByType("var_spec"); spec != nil {
			if id := spec.FindChildByType("identifier"); id != nil {
				return id.Content(source)
			}
		}
	}
	return ""
}

func extractJSName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		// Name is nested inside variable_declarator.
		if decl := n.FindChildByType("variable_declarator"); decl != nil {
			if id := decl.FindChildByType("identifier"); id != nil {
				return id.Content(source)
			}
		}
		return ""
	}
	if n.Type == "export_statement" {
		for _, child := range n.Children {
			if name := extractJSName(child, source); name != "" {
				return name
			}
		}
		return ""
	}
	for _, child := range n.Children {
		if child.Type == "identifier" || child.Type == "type_identifier" {
			return child.Content(source)
		}
	}
	return ""
}

func extractPythonName(n *Node, source []byte) string {
	if n.Type == "decorated_definition" {
		// The real definition sits under the decorators.
		for _, child := range n.Children {
			if child.Type == "function_definition" || child.Type == "class_definition" {
				return extractPythonName(child, source)
			}
		}
		return ""
	}
	if child := n.FindChildByType("identifier"); child != nil {
		return child.Content(source)
	}
	return ""
}

// variableFunction reports whether a JS/TS variable declaration binds an
// arrow function or function expression, returning the bound name.
func variableFunction(n *Node, source []byte) (string, bool) {
	target := n
	if n.Type == "export_statement" {
		for _, child := range n.Children {
			if child.Type == "lexical_declaration" || child.Type == "variable_declaration" {
				target = child
				break
			}
		}
	}
	if target.Type != "lexical_declaration" && target.Type != "variable_declaration" {
		return "", false
	}

	decl := target.FindChildByType("variable_declarator")
	if decl == nil {
		return "", false
	}

	var name string
	var hasFunction bool
	for _, child := range decl.Children {
		switch child.Type {
		case "identifier":
			name = child.Content(source)
		case "arrow_function", "function", "function_expression":
			hasFunction = true
		}
	}
	if name == "" || !hasFunction {
		return "", false
	}
	return name, true
}

// extractImports collects imported module identifiers for a file.
func extractImports(tree *Tree) []string {
	spec := tree.Language.spec()
	if len(spec.importTypes) == 0 {
		return nil
	}

	importSet := make(map[string]bool, len(spec.importTypes))
	for _, t := range spec.importTypes {
		importSet[t] = true
	}

	var deps []string
	for _, node := range tree.Root.Children {
		if !importSet[node.Type] {
			continue
		}
		node.Walk(func(n *Node) bool {
			switch n.Type {
			case "interpreted_string_literal", "string", "string_literal":
				dep := trimQuotes(n.Content(tree.Source))
				if dep != "" {
					deps = append(deps, dep)
				}
				return false
			case "dotted_name", "aliased_import":
				if n.Type == "dotted_name" {
					deps = append(deps, n.Content(tree.Source))
					return false
				}
			}
			return true
		})
	}
	return deps
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}
